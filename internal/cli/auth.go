package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tenderops/remixbridge/internal/config"
	"github.com/tenderops/remixbridge/internal/statestore"
	"github.com/tenderops/remixbridge/pkg/tenderly"
)

// Credentials stores access tokens per backend
type Credentials struct {
	Backends map[string]BackendCredential `yaml:"backends"`
}

// BackendCredential stores the credential for a single backend
type BackendCredential struct {
	AccessToken string `yaml:"access_token"`
}

func createLoginCmd() *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save and validate an access token",
		Long: `Validate a Tenderly access token and save it for the bridge daemon.

The token is stored in ~/.remixbridge/credentials with secure file
permissions and in the bridge state store, so a running or later
started daemon picks it up.

EXAMPLES:
  # Interactive login (prompts for the token)
  remixbridge login

  # Non-interactive login (for scripts)
  remixbridge login --token $TENDERLY_ACCESS_TOKEN
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(tokenFlag)
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "access token (prompts if not provided)")

	return cmd
}

func createLogoutCmd() *cobra.Command {
	var allFlag bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the saved access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(allFlag)
		},
	}

	cmd.Flags().BoolVar(&allFlag, "all", false, "clear credentials for all backends")

	return cmd
}

func createStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runLogin(tokenInput string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	backend := backendURL(cfg)

	token := tokenInput
	if token == "" {
		fmt.Printf("Enter access token for %s: ", backend)

		stdinFd := int(os.Stdin.Fd())
		if term.IsTerminal(stdinFd) {
			byteToken, err := term.ReadPassword(stdinFd)
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			token = string(byteToken)
		} else {
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}
	}

	if token == "" {
		return fmt.Errorf("access token cannot be empty")
	}

	fmt.Printf("Validating token with %s...\n", backend)
	client := tenderly.New(backend)
	client.SetAccessToken(token)
	valid, err := client.CheckToken(context.Background())
	if err != nil {
		return fmt.Errorf("failed to validate token: %w", err)
	}
	if !valid {
		return fmt.Errorf("the token was rejected")
	}

	if err := saveCredential(backend, token); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	// Seed the daemon state store so a running bridge restores the
	// token on its next start.
	if err := seedStateStore(cfg, token); err != nil {
		return fmt.Errorf("failed to update bridge state: %w", err)
	}

	fmt.Printf("Authenticated to %s (token: %s)\n", backend, maskToken(token))
	fmt.Printf("Credentials saved to %s\n", credentialsFilePath())

	return nil
}

func runLogout(all bool) error {
	if all {
		path := credentialsFilePath()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}
	} else {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		backend := backendURL(cfg)

		creds, err := loadCredentials()
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load credentials: %w", err)
		}
		if creds != nil {
			delete(creds.Backends, backend)
			if err := writeCredentials(creds); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := seedStateStore(cfg, ""); err != nil {
		return fmt.Errorf("failed to update bridge state: %w", err)
	}

	fmt.Println("Logged out")
	return nil
}

func runStatus() error {
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Not authenticated")
			fmt.Println("\nRun 'remixbridge login' to authenticate")
			return nil
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if len(creds.Backends) == 0 {
		fmt.Println("Not authenticated")
		fmt.Println("\nRun 'remixbridge login' to authenticate")
		return nil
	}

	fmt.Println("Authenticated backends:")
	for backend, cred := range creds.Backends {
		fmt.Printf("  %s (token: %s)\n", backend, maskToken(cred.AccessToken))
	}

	return nil
}

// backendURL resolves the verification API base URL.
func backendURL(cfg *config.Config) string {
	if backendFlag != "" {
		return backendFlag
	}
	return cfg.Backend.APIURL
}

// seedStateStore writes the token into the daemon's state store.
func seedStateStore(cfg *config.Config, token string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := statestore.New(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return store.SetAccessToken(ctx, token)
}

// Credential file helpers

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".remixbridge"
	}
	return filepath.Join(home, ".remixbridge")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(credentialsFilePath())
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	if creds.Backends == nil {
		creds.Backends = make(map[string]BackendCredential)
	}

	return &creds, nil
}

func writeCredentials(creds *Credentials) error {
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	return os.WriteFile(credentialsFilePath(), data, 0600)
}

func saveCredential(backend, token string) error {
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			creds = &Credentials{Backends: make(map[string]BackendCredential)}
		} else {
			return err
		}
	}

	creds.Backends[backend] = BackendCredential{AccessToken: token}
	return writeCredentials(creds)
}

func getCredential(backend string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	if cred, ok := creds.Backends[backend]; ok {
		return cred.AccessToken
	}
	return ""
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
