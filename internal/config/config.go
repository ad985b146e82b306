package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Config captures everything a run needs. It is built once at startup and
// passed into component constructors; no component reads process state.
type Config struct {
	// IMAP transport. Credentials come from the environment so they never
	// appear in shell history.
	IMAPHost string
	IMAPPort int
	Username string
	Password string

	// Batch selection
	Mailbox  string
	Criteria string
	Limit    int

	// MboxPath, when set, runs the batch against a local mbox archive
	// instead of the IMAP server.
	MboxPath string

	// Classification
	Language       string
	InternalDomain string

	// Output locations
	DBPath         string
	AttachmentsDir string
	ReportsDir     string

	// Browse server
	Host string
	Port string

	LogLevel string
}

var validCriteria = []string{"UNSEEN", "SEEN", "ALL", "FLAGGED", "DELETED"}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("mailbox", "m", "INBOX", "The IMAP mailbox to check")
	flags.StringP("status", "s", "UNSEEN", "Search criteria: UNSEEN, SEEN, ALL, FLAGGED, DELETED")
	flags.IntP("limit", "l", 0, "Maximum number of emails to process (0 = no limit)")
	flags.StringP("domain", "d", "", "Override the internal domain (e.g. @custom.com)")
	flags.String("language", "en", "Rule-set language profile (en, fr)")
	flags.String("mbox", "", "Process a local .mbox archive instead of connecting to IMAP")
	flags.String("output", "output", "Base directory for the database, attachments and reports")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
}

// RegisterServeFlags attaches the browse-server flags.
func RegisterServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("host", "localhost", "Address to serve on")
	flags.String("port", "8080", "Port to serve on")
	flags.String("output", "output", "Base directory holding the database")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
}

// Load converts the parsed flags plus environment into a Config. In IMAP
// mode, missing transport credentials are a fatal configuration error; the
// run never starts without them.
func Load(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()
	cfg := Config{
		IMAPHost:       os.Getenv("IMAP_SERVER"),
		IMAPPort:       993,
		Username:       os.Getenv("EMAIL_ADDRESS"),
		Password:       os.Getenv("EMAIL_PASSWORD"),
		InternalDomain: os.Getenv("INTERNAL_DOMAIN"),
	}

	if portStr := os.Getenv("IMAP_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IMAP_PORT %q: %w", portStr, err)
		}
		cfg.IMAPPort = port
	}

	var err error
	if cfg.Mailbox, err = flags.GetString("mailbox"); err != nil {
		return Config{}, err
	}
	if cfg.Criteria, err = flags.GetString("status"); err != nil {
		return Config{}, err
	}
	if cfg.Limit, err = flags.GetInt("limit"); err != nil {
		return Config{}, err
	}
	if cfg.MboxPath, err = flags.GetString("mbox"); err != nil {
		return Config{}, err
	}
	if cfg.Language, err = flags.GetString("language"); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
		return Config{}, err
	}

	if domain, err := flags.GetString("domain"); err != nil {
		return Config{}, err
	} else if domain != "" {
		cfg.InternalDomain = domain
	}
	if cfg.InternalDomain == "" {
		cfg.InternalDomain = "@mycompany.com"
	}
	cfg.InternalDomain = strings.ToLower(cfg.InternalDomain)

	output, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	cfg.DBPath = filepath.Join(output, "emails.db")
	cfg.AttachmentsDir = filepath.Join(output, "attachments")
	cfg.ReportsDir = filepath.Join(output, "reports")

	cfg.Criteria = strings.ToUpper(cfg.Criteria)
	if !contains(validCriteria, cfg.Criteria) {
		return Config{}, fmt.Errorf("invalid status %q, expected one of %s",
			cfg.Criteria, strings.Join(validCriteria, ", "))
	}

	if cfg.MboxPath == "" {
		if cfg.IMAPHost == "" || cfg.Username == "" || cfg.Password == "" {
			return Config{}, fmt.Errorf("incomplete IMAP configuration: IMAP_SERVER, EMAIL_ADDRESS and EMAIL_PASSWORD must be set")
		}
	}

	return cfg, nil
}

// LoadServe converts the serve-subcommand flags into a Config.
func LoadServe(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()
	cfg := Config{}

	var err error
	if cfg.Host, err = flags.GetString("host"); err != nil {
		return Config{}, err
	}
	if cfg.Port, err = flags.GetString("port"); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = flags.GetString("log-level"); err != nil {
		return Config{}, err
	}

	output, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	cfg.DBPath = filepath.Join(output, "emails.db")

	return cfg, nil
}

// Address returns the browse server address.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
