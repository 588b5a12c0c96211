package entity

import (
	"context"
	"encoding/base64"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

/*
 * ContentFetcher fetches a file from the platform at a ref. The second
 * return value is the declared encoding of the content ("base64" or
 * "utf-8" / "").
 */
type ContentFetcher func(ctx context.Context, org, repo, path, ref string) ([]byte, string, error)

/*
 * LoadPermissionsConfig locates, decodes, normalizes and validates the
 * permissions document. Sources tried in order:
 * - ./config.yml, ./config.yaml
 * - PERMISSIONS_FILE_LOCAL_PATH
 * - the platform at (PERMISSIONS_FILE_ORG, PERMISSIONS_FILE_REPO,
 *   PERMISSIONS_FILE_PATH, ref=PERMISSIONS_FILE_REF)
 */
func LoadPermissionsConfig(ctx context.Context, fs billy.Filesystem, fetch ContentFetcher) (*PermissionsConfig, error) {
	raw, source, err := readRawConfig(ctx, fs, fetch)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("loaded permissions config from %s", source)
	return ParsePermissionsConfig(raw)
}

// ParsePermissionsConfig decodes, normalizes and validates a raw
// permissions document.
func ParsePermissionsConfig(raw []byte) (*PermissionsConfig, error) {
	permissions := &PermissionsConfig{}
	if err := yaml.Unmarshal(raw, permissions); err != nil {
		return nil, NewConfigMalformed("cannot decode permissions document: %v", err)
	}
	permissions.Normalize()
	if err := permissions.Validate(); err != nil {
		return nil, err
	}
	return permissions, nil
}

func readRawConfig(ctx context.Context, fs billy.Filesystem, fetch ContentFetcher) ([]byte, string, error) {
	candidates := []string{"config.yml", "config.yaml"}
	if config.Config.PermissionsFileLocalPath != "" {
		candidates = append(candidates, config.Config.PermissionsFileLocalPath)
	}
	for _, path := range candidates {
		content, err := readFile(fs, path)
		if err == nil {
			return content, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", NewConfigMalformed("cannot read %s: %v", path, err)
		}
	}

	if fetch == nil || config.Config.PermissionsFileOrg == "" {
		return nil, "", NewConfigMissing("no local permissions file and no PERMISSIONS_FILE_ORG configured")
	}

	content, encoding, err := fetch(ctx,
		config.Config.PermissionsFileOrg,
		config.Config.PermissionsFileRepo,
		config.Config.PermissionsFilePath,
		config.Config.PermissionsFileRef,
	)
	if err != nil {
		return nil, "", NewConfigMissing("cannot fetch permissions file from %s/%s: %v",
			config.Config.PermissionsFileOrg, config.Config.PermissionsFileRepo, err)
	}
	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(string(content))
		if err != nil {
			return nil, "", NewConfigMalformed("cannot base64-decode permissions file: %v", err)
		}
		content = decoded
	}
	return content, "remote", nil
}

func readFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
