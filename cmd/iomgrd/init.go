package main

import (
	"crypto/rand"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/siodb/iomgr/internal/cipher"
)

var (
	initName        string
	initCipherID    string
	initDescription string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a new database (CREATE DATABASE wizard)",
	Long: `init walks through creating a new database the way bd's create-form
walks through creating an issue: a short huh form collecting the database
name, cipher, and description, then CREATE DATABASE against the running
instance's catalog (spec §3.2, §4.9). Pass --name to skip the form
entirely for scripted use.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "database name (skips the interactive form if set)")
	initCmd.Flags().StringVar(&initCipherID, "cipher", "aes128", "cipher id: aes128, aes192, aes256, camellia128, camellia192, camellia256, or none")
	initCmd.Flags().StringVar(&initDescription, "description", "", "free-text database description")
}

func runInit(cmd *cobra.Command, args []string) error {
	name, cipherID, description := initName, initCipherID, initDescription

	if name == "" {
		cipherOptions := []huh.Option[string]{
			huh.NewOption("AES-128", "aes128"),
			huh.NewOption("AES-192", "aes192"),
			huh.NewOption("AES-256", "aes256"),
			huh.NewOption("Camellia-128", "camellia128"),
			huh.NewOption("Camellia-192", "camellia192"),
			huh.NewOption("Camellia-256", "camellia256"),
			huh.NewOption("None (unencrypted)", "none"),
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Database name").
					Placeholder("e.g., orders").
					Value(&name),
				huh.NewSelect[string]().
					Title("Cipher").
					Options(cipherOptions...).
					Value(&cipherID),
				huh.NewInput().
					Title("Description").
					Placeholder("optional").
					Value(&description),
			),
		).WithTheme(huh.ThemeDracula())

		if err := form.Run(); err != nil {
			if err == huh.ErrUserAborted {
				fmt.Println("Aborted.")
				return nil
			}
			return fmt.Errorf("form: %w", err)
		}
	}

	if name == "" {
		return fmt.Errorf("database name is required")
	}

	c, ok := cipher.Lookup(cipherID)
	if !ok {
		return fmt.Errorf("unknown cipher id %q", cipherID)
	}
	var key []byte
	if c.KeySizeBits() > 0 {
		key = make([]byte, c.KeySizeBits()/8)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generating cipher key: %w", err)
		}
	}

	cfg := loadConfig()
	inst, err := openInstance(cfg)
	if err != nil {
		return fmt.Errorf("opening instance: %w", err)
	}
	defer inst.Close()

	db, err := inst.CreateDatabase(name, cipherID, key, description)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}

	cat, err := openCatalog(inst)
	if err != nil {
		return fmt.Errorf("opening system catalog: %w", err)
	}
	if err := cat.RecordDatabase(db.ID, [16]byte(db.UUID), db.Name, cipherID, description); err != nil {
		return fmt.Errorf("recording database in catalog: %w", err)
	}

	if jsonOutput {
		fmt.Printf("{\"id\":%d,\"uuid\":%q,\"name\":%q}\n", db.ID, db.UUID.String(), db.Name)
		return nil
	}
	fmt.Printf("Created database %q (id=%d, uuid=%s)\n", db.Name, db.ID, db.UUID.String())
	if len(key) > 0 {
		fmt.Printf("Cipher key (save this, it is not stored anywhere in plaintext): %s\n", hexEncode(key))
	}
	return nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
