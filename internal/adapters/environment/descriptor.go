package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bnema/marketplace-wallet/internal/domain"
	"github.com/bnema/marketplace-wallet/internal/ports"
)

const (
	DescriptorAPIVersion = "wallet.marketplace/v1"
	DescriptorKind       = "WalletProvider"
)

// Descriptor declares one injected wallet global. Wallet companions drop these files
// into the providers directory when they start and remove them when they stop.
type Descriptor struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   Metadata     `yaml:"metadata"`
	Spec       ProviderSpec `yaml:"spec"`
}

type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type ProviderSpec struct {
	// Global defaults to the conventional global name of Kind.
	Global    string            `yaml:"global,omitempty"`
	Kind      domain.WalletType `yaml:"kind"`
	Endpoint  string            `yaml:"endpoint"`
	Version   int               `yaml:"version,omitempty"`
	GenesisID string            `yaml:"genesisId,omitempty"`
	Session   string            `yaml:"session,omitempty"`
	Flags     ProviderFlags     `yaml:"flags,omitempty"`
}

type ProviderFlags struct {
	InAppBrowser         bool `yaml:"inAppBrowser,omitempty"`
	AuthenticatedAccount bool `yaml:"authenticatedAccount,omitempty"`
}

var defaultGlobals = map[domain.WalletType]string{
	domain.WalletExtensionA:       ports.GlobalExtensionA,
	domain.WalletExtensionB:       ports.GlobalExtensionB,
	domain.WalletDesktopApp:       ports.GlobalDesktopApp,
	domain.WalletDesktopAppLegacy: ports.GlobalDesktopAppLegacy,
}

func (d *Descriptor) applyDefaults() {
	if d.Spec.Global == "" {
		d.Spec.Global = defaultGlobals[d.Spec.Kind]
	}
	if d.Spec.Kind == domain.WalletDesktopApp && d.Spec.Version == 0 {
		d.Spec.Version = 1
	}
}

func (d Descriptor) Validate() error {
	if d.APIVersion != DescriptorAPIVersion {
		return fmt.Errorf("unsupported apiVersion %q", d.APIVersion)
	}
	if d.Kind != DescriptorKind {
		return fmt.Errorf("unsupported kind %q", d.Kind)
	}
	if strings.TrimSpace(d.Metadata.Name) == "" {
		return errors.New("metadata.name is required")
	}
	if _, ok := defaultGlobals[d.Spec.Kind]; !ok {
		return fmt.Errorf("spec.kind %q cannot be injected", d.Spec.Kind)
	}
	if strings.TrimSpace(d.Spec.Endpoint) == "" {
		return errors.New("spec.endpoint is required")
	}
	if d.Spec.Kind == domain.WalletDesktopAppLegacy {
		if d.Spec.GenesisID == "" {
			return errors.New("spec.genesisId is required for the legacy desktop app")
		}
		if d.Spec.Session == "" {
			return errors.New("spec.session is required for the legacy desktop app")
		}
	}
	return nil
}

func ParseDescriptor(data []byte) (Descriptor, error) {
	var descriptor Descriptor
	if err := yaml.Unmarshal(data, &descriptor); err != nil {
		return Descriptor{}, fmt.Errorf("parse descriptor: %w", err)
	}
	descriptor.applyDefaults()
	if err := descriptor.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("validate descriptor %q: %w", descriptor.Metadata.Name, err)
	}
	return descriptor, nil
}

// LoadDescriptors reads every YAML file in dir in name order. A missing directory
// holds no descriptors. Invalid files are returned in the joined error and skipped.
func LoadDescriptors(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read providers dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isDescriptorFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	slices.Sort(names)

	var (
		descriptors []Descriptor
		errs        []error
	)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", name, err))
			continue
		}
		descriptor, err := ParseDescriptor(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		descriptors = append(descriptors, descriptor)
	}

	return descriptors, errors.Join(errs...)
}

func isDescriptorFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
