package registry

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

type nopBackend struct{ name string }

func (b nopBackend) Name() string { return b.name }

func (b nopBackend) Call(ctx context.Context, role domain.Role, in *domain.StageInput) (*ports.BackendResponse, error) {
	return nil, errors.New("not implemented")
}

func TestRegistry(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	RegisterFactory(BackendFactory{
		Type: "zeta",
		Create: func(cfg config.ProviderConfig) (ports.Backend, error) {
			return nopBackend{name: cfg.Name}, nil
		},
	})
	RegisterFactory(BackendFactory{
		Type: "alpha",
		Create: func(cfg config.ProviderConfig) (ports.Backend, error) {
			return nopBackend{name: cfg.Name}, nil
		},
		ValidateConfig: func(cfg config.ProviderConfig) error {
			if cfg.APIKey == "" {
				return errors.New("api_key is required")
			}
			return nil
		},
	})

	if got := ListBackendTypes(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Errorf("ListBackendTypes() = %v", got)
	}

	b, err := CreateFromFactory(config.ProviderConfig{Name: "z1", Type: "zeta"})
	if err != nil || b.Name() != "z1" {
		t.Fatalf("CreateFromFactory() = %v, %v", b, err)
	}

	if _, err := CreateFromFactory(config.ProviderConfig{Name: "a1", Type: "alpha"}); err == nil {
		t.Error("expected validation error")
	}
	if _, err := CreateFromFactory(config.ProviderConfig{Type: "missing"}); err == nil {
		t.Error("expected unknown type error")
	}
}

func TestRegisterFactory_DuplicatePanics(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	f := BackendFactory{Type: "dup", Create: func(config.ProviderConfig) (ports.Backend, error) { return nopBackend{}, nil }}
	RegisterFactory(f)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterFactory(f)
}
