package proof

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
)

// Extensão por content type aceito. O tipo é detectado pelo conteúdo, não
// pela extensão enviada: o cliente não é confiável.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Store grava comprovantes de pagamento em disco. O caminho devolvido fica
// registrado no pedido; a revisão manual abre a imagem por ele.
type Store struct {
	Dir      string
	MaxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// Save valida tamanho e tipo do comprovante e o grava com nome próprio.
// Erros de validação saem como ValidationError no campo payment_image;
// falha de escrita é TransientError (nada do pedido foi persistido ainda).
func (s *Store) Save(size int64, r io.Reader) (string, error) {
	ve := lottery.NewValidationError()
	if size <= 0 {
		ve.Addf("payment_image", "payment proof image is required")
		return "", ve
	}
	if size > s.MaxBytes {
		ve.Addf("payment_image", "image exceeds %d bytes", s.MaxBytes)
		return "", ve
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", &lottery.TransientError{Op: "read proof", Err: err}
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := allowedTypes[contentType]
	if !ok {
		ve.Addf("payment_image", "unsupported image type %s, want jpeg/png/gif", contentType)
		return "", ve
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", &lottery.TransientError{Op: "create proof file", Err: err}
	}
	defer f.Close()

	if _, err := f.Write(head); err != nil {
		os.Remove(path)
		return "", &lottery.TransientError{Op: "write proof", Err: err}
	}
	written, err := io.Copy(f, io.LimitReader(r, s.MaxBytes))
	if err != nil {
		os.Remove(path)
		return "", &lottery.TransientError{Op: "write proof", Err: err}
	}
	if int64(n)+written > s.MaxBytes {
		os.Remove(path)
		ve.Addf("payment_image", "image exceeds %d bytes", s.MaxBytes)
		return "", ve
	}

	return name, nil
}

// Remove descarta um comprovante gravado. Usado quando a transação do pedido
// falha depois da gravação: sem pedido não pode sobrar imagem órfã no disco.
func (s *Store) Remove(name string) error {
	clean := filepath.Base(name) // sem path traversal
	if err := os.Remove(filepath.Join(s.Dir, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove proof: %w", err)
	}
	return nil
}

// Open devolve o comprovante gravado (servido na revisão manual).
func (s *Store) Open(name string) (io.ReadCloser, error) {
	clean := filepath.Base(name) // sem path traversal
	f, err := os.Open(filepath.Join(s.Dir, clean))
	if os.IsNotExist(err) {
		return nil, lottery.ErrNotFound
	}
	return f, err
}
