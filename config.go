package imapio

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Account describes a mailbox and the walk to run over it
type Account struct {
	Host      string   `yaml:"host"`
	Port      int      `yaml:"port"`
	User      string   `yaml:"user"`
	Password  string   `yaml:"password"`
	Auth      string   `yaml:"auth"` // login (default), plain or xoauth2
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
	Criterion string   `yaml:"criterion"`
}

// LoadAccount reads an account from a YAML file, expanding ${VAR}
// references from the environment. Existing env files are loaded first.
func LoadAccount(path string, envFiles ...string) (Account, error) {
	var a Account

	for _, env := range envFiles {
		if _, err := os.Stat(env); err != nil {
			continue
		}
		if err := godotenv.Load(env); err != nil {
			return a, fmt.Errorf("unable to load environment variables from %s: %w", env, err)
		}
	}

	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return a, fmt.Errorf("account file %s doesn't exist: %w", path, err)
		case errors.Is(err, os.ErrPermission):
			return a, fmt.Errorf("permission denied for account file %s: %w", path, err)
		default:
			return a, fmt.Errorf("unable to read account file %s: %w", path, err)
		}
	}

	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &a); err != nil {
		return a, fmt.Errorf("unable to unmarshal account file %s: %w", path, err)
	}

	if a.Host == "" {
		return a, fmt.Errorf("account file %s: host is required", path)
	}
	if a.Port == 0 {
		a.Port = 993
	}
	return a, nil
}

// Connect opens a session with the account's authentication mode
func (a Account) Connect() (*Session, error) {
	switch strings.ToLower(a.Auth) {
	case "", "login":
		return Connect(a.Host, a.Port, a.User, a.Password)
	case "plain":
		return ConnectPlain(a.Host, a.Port, a.User, a.Password)
	case "xoauth2", "oauth2":
		return ConnectOAuth2(a.Host, a.Port, a.User, a.Password)
	default:
		return nil, fmt.Errorf("[%s@%s:%d] unknown auth mode %q", a.User, a.Host, a.Port, a.Auth)
	}
}

// Walk starts the account's walk on s
func (a Account) Walk(s *Session) *Walker {
	return s.Walk(a.Includes, a.Excludes, a.Criterion)
}
