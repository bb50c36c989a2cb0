package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ValentinKolb/dFlux/lib/reactor"
	"github.com/lni/dragonboat/v4/logger"
)

const (
	magicNum        = "DFLUXSS\x00" // File format identifier
	snapshotVersion = 1
)

var log = logger.GetLogger("snapshot")

// Header describes a snapshot file
type Header struct {
	Version    uint8  `json:"version"`
	Serializer string `json:"serializer"`
	Size       uint32 `json:"size"`
}

// Save writes data to w, encoded with s
func Save(w io.Writer, s ISerializer, data map[string]any) error {
	payload, err := s.Serialize(data)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("snapshot too large: %d bytes", len(payload))
	}

	bw := bufio.NewWriter(w)

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, s.ID()); err != nil {
		return err
	}

	// Write payload
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		return err
	}

	return bw.Flush()
}

// Load reads a snapshot written by Save
func Load(r io.Reader) (map[string]any, Header, error) {
	var header Header
	br := bufio.NewReader(r)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return nil, header, err
	}
	if string(magicBytes) != magicNum {
		return nil, header, fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	if err := binary.Read(br, binary.LittleEndian, &header.Version); err != nil {
		return nil, header, err
	}
	if header.Version != snapshotVersion {
		return nil, header, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, snapshotVersion)
	}

	var serializerID uint8
	if err := binary.Read(br, binary.LittleEndian, &serializerID); err != nil {
		return nil, header, err
	}
	s, err := ByID(serializerID)
	if err != nil {
		return nil, header, err
	}
	header.Serializer = s.Name()

	// Read payload
	if err := binary.Read(br, binary.LittleEndian, &header.Size); err != nil {
		return nil, header, err
	}
	// the size comes from the file, so the buffer grows with the bytes actually read
	payload, err := io.ReadAll(io.LimitReader(br, int64(header.Size)))
	if err != nil {
		return nil, header, fmt.Errorf("read snapshot: %w", err)
	}
	if uint64(len(payload)) != uint64(header.Size) {
		return nil, header, fmt.Errorf("truncated snapshot: got %d of %d bytes", len(payload), header.Size)
	}

	data, err := s.Deserialize(payload)
	if err != nil {
		return nil, header, fmt.Errorf("deserialize snapshot: %w", err)
	}
	return data, header, nil
}

// --------------------------------------------------------------------------
// Reactor & File Helpers
// --------------------------------------------------------------------------

// SaveReactor serializes the state of r and writes it to w
func SaveReactor(w io.Writer, s ISerializer, r *reactor.Reactor) error {
	data, err := r.Serialize()
	if err != nil {
		return err
	}
	return Save(w, s, data)
}

// LoadReactor reads a snapshot and loads it into r
func LoadReactor(rd io.Reader, r *reactor.Reactor) (Header, error) {
	data, header, err := Load(rd)
	if err != nil {
		return header, err
	}
	return header, r.LoadState(data)
}

// SaveFile writes a snapshot of r to path
func SaveFile(path string, s ISerializer, r *reactor.Reactor) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := SaveReactor(f, s, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("Saved snapshot of %d stores to %s (%s)", len(r.StoreIDs()), path, s.Name())
	return nil
}

// ReadFile reads the snapshot at path
func ReadFile(path string) (map[string]any, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer f.Close()
	return Load(f)
}

// LoadFile reads the snapshot at path and loads it into r
func LoadFile(path string, r *reactor.Reactor) (Header, error) {
	data, header, err := ReadFile(path)
	if err != nil {
		return header, err
	}
	if err := r.LoadState(data); err != nil {
		return header, err
	}
	log.Infof("Loaded snapshot %s (%s, %d bytes)", path, header.Serializer, header.Size)
	return header, nil
}
