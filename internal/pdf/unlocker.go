package pdf

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JakeFAU/docbridge/internal/conversion"
)

// Unlocker writes a decrypted copy of a protected PDF to a temp directory.
type Unlocker struct {
	tempDir string
}

// NewUnlocker places decrypted copies in tempDir, or os.TempDir when empty.
func NewUnlocker(tempDir string) *Unlocker {
	return &Unlocker{tempDir: tempDir}
}

// Unlock decrypts path with password. Any decryption failure is reported as
// AuthenticationFailed; pdfcpu does not distinguish a wrong password from an
// unsupported security handler.
func (u *Unlocker) Unlock(ctx context.Context, path, password string) (string, func(), error) {
	noop := func() {}
	if err := ctx.Err(); err != nil {
		return "", noop, err
	}
	f, err := os.CreateTemp(u.tempDir, "docbridge-unlocked-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("create decrypted copy: %w", err)
	}
	out := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(out)
		return "", noop, fmt.Errorf("close decrypted copy: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	if err := api.DecryptFile(path, out, conf); err != nil {
		_ = os.Remove(out)
		return "", noop, conversion.AuthenticationFailed(path, err)
	}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { _ = os.Remove(out) })
	}
	return out, cleanup, nil
}
