package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"time"
)

// StreamChunkSize bounds memory use while sealing or opening large
// files. The whole stream carries a single tag, so memory stays at one
// chunk regardless of input size.
const StreamChunkSize = 4096

// Stream subkey labels. The file key never touches the wire directly;
// encryption and authentication use independent HMAC-derived subkeys.
var (
	streamEncLabel = []byte("vaultcore.stream.enc.v1")
	streamMACLabel = []byte("vaultcore.stream.mac.v1")
)

// SealStream encrypts reader contents to writer in fixed-size chunks.
// Output layout matches the envelope format: nonce || ciphertext || tag,
// with AES-256-CTR for the keystream and an HMAC-SHA256 tag (truncated
// to TagSize) over nonce and ciphertext, appended after the final chunk.
func (c *Cipher) SealStream(r io.Reader, w io.Writer, key []byte) error {
	if err := ValidateKeySize(key); err != nil {
		return err
	}

	nonce, err := c.rand.Nonce()
	if err != nil {
		return err
	}

	ctr, mac, err := streamState(key, nonce)
	if err != nil {
		return err
	}

	if _, err := w.Write(nonce); err != nil {
		return fmt.Errorf("write nonce: %w", err)
	}

	buf := make([]byte, StreamChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			ctr.XORKeyStream(chunk, chunk)
			mac.Write(chunk)
			if _, err := w.Write(chunk); err != nil {
				return fmt.Errorf("write ciphertext: %w", err)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read plaintext: %w", rerr)
		}
	}

	tag := mac.Sum(nil)[:TagSize]
	if _, err := w.Write(tag); err != nil {
		return fmt.Errorf("write tag: %w", err)
	}
	return nil
}

// OpenStream decrypts a sealed stream. Plaintext is spooled to a
// temporary file and copied to the writer only after the tag verifies,
// so the destination never sees unauthenticated output.
func (c *Cipher) OpenStream(r io.Reader, w io.Writer, key []byte) error {
	spool, err := os.CreateTemp("", "vaultcore-open-*")
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	if err := c.openTo(r, spool, key); err != nil {
		return err
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool file: %w", err)
	}
	if _, err := io.Copy(w, spool); err != nil {
		return fmt.Errorf("copy plaintext: %w", err)
	}
	return nil
}

// SealFile encrypts src to dst, writing through a temporary file and
// renaming into place.
func (c *Cipher) SealFile(src, dst string, key []byte) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	return c.writeAtomic(dst, func(out io.Writer) error {
		return c.SealStream(in, out, key)
	})
}

// OpenFile decrypts src to dst. Plaintext lands in a temporary file
// first; the rename happens only after the tag verifies, so a failed
// open leaves nothing at dst.
func (c *Cipher) OpenFile(src, dst string, key []byte) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	return c.writeAtomic(dst, func(out io.Writer) error {
		return c.openTo(in, out, key)
	})
}

// openTo decrypts the stream into w, verifying the trailing tag. The
// final TagSize bytes are withheld from decryption until EOF proves
// they are the tag rather than ciphertext.
func (c *Cipher) openTo(r io.Reader, w io.Writer, key []byte) error {
	if err := ValidateKeySize(key); err != nil {
		return err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return fmt.Errorf("%w: short nonce: %v", ErrInvalidInput, err)
	}

	ctr, mac, err := streamState(key, nonce)
	if err != nil {
		return err
	}

	hold := make([]byte, 0, TagSize)
	buf := make([]byte, StreamChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			data := make([]byte, 0, len(hold)+n)
			data = append(data, hold...)
			data = append(data, buf[:n]...)

			if len(data) > TagSize {
				chunk := data[:len(data)-TagSize]
				mac.Write(chunk)
				ctr.XORKeyStream(chunk, chunk)
				if _, err := w.Write(chunk); err != nil {
					return fmt.Errorf("write plaintext: %w", err)
				}
				data = data[len(data)-TagSize:]
			}
			hold = append(hold[:0], data...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read ciphertext: %w", rerr)
		}
	}

	if len(hold) != TagSize {
		return fmt.Errorf("%w: stream shorter than nonce and tag", ErrInvalidInput)
	}
	if !hmac.Equal(mac.Sum(nil)[:TagSize], hold) {
		return ErrAuthenticationFailed
	}
	return nil
}

// writeAtomic runs fn against a temporary file next to path and renames
// it into place only if fn succeeds.
func (c *Cipher) writeAtomic(path string, fn func(io.Writer) error) error {
	tempPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())

	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := fn(out); err != nil {
		return err
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true
	return nil
}

// streamState builds the CTR keystream and MAC for one stream. The tag
// covers the nonce as well as every ciphertext byte.
func streamState(key, nonce []byte) (cipher.Stream, hash.Hash, error) {
	encKey := subkey(key, streamEncLabel)
	macKey := subkey(key, streamMACLabel)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)
	ctr := cipher.NewCTR(block, iv)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(nonce)
	return ctr, mac, nil
}

// subkey derives an independent subkey from the file key via HMAC.
func subkey(key, label []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(label)
	return h.Sum(nil)
}
