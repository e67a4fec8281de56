package sftp

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gobeaver/netfs"
)

// AnonymousUser is the login name used when the URI has no user.
const AnonymousUser = "anonymous"

// clientConfig builds the SSH client configuration for uri.
func clientConfig(uri *netfs.URI, settings *netfs.Settings) (*ssh.ClientConfig, error) {
	user := uri.User
	if user == "" {
		user = AnonymousUser
	}

	auth, err := authMethods(uri, settings)
	if err != nil {
		return nil, err
	}

	hostKey, err := hostKeyCallback(settings)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         DefaultTimeout,
	}, nil
}

// authMethods offers the private key first, then the password. The URI
// password wins over the configured one.
func authMethods(uri *netfs.URI, settings *netfs.Settings) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if keyFile := settings.PrivateKeyFile(); keyFile != "" {
		if signer, err := loadSigner(keyFile, settings.SFTPPassphrase); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		} else if !errors.Is(err, os.ErrNotExist) {
			netfs.Logger().Warn("ignoring private key", "file", keyFile, "error", err)
		}
	}

	password := settings.SFTPPassword
	if uri.HasPassword {
		password = uri.Password
	}
	if password != "" {
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no private key or password available", netfs.ErrAuth)
	}
	return methods, nil
}

func loadSigner(file, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(data)
}

// hostKeyCallback verifies against known_hosts. Unknown hosts are accepted
// with a warning unless strict checking is enabled; a changed key is always
// rejected.
func hostKeyCallback(settings *netfs.Settings) (ssh.HostKeyCallback, error) {
	file := settings.KnownHostsFile()
	strict := settings.SFTPStrictHostKey

	check, err := knownhosts.New(file)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("%w: known_hosts %s: %v", netfs.ErrAuth, file, err)
		}
		netfs.Logger().Warn("known_hosts unavailable, host keys are not verified", "file", file, "error", err)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var ke *knownhosts.KeyError
		if err != nil && errors.As(err, &ke) && len(ke.Want) == 0 && !strict {
			netfs.Logger().Warn("accepting unknown host key", "host", hostname, "type", key.Type(),
				"fingerprint", ssh.FingerprintSHA256(key))
			return nil
		}
		return err
	}, nil
}
