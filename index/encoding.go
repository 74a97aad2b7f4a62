package index

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ArtifactPrefix byte = 0x00 // serialized model artifacts
	AuxDataPrefix  byte = 0x02 // auxiliary data

	artifactFormatVersion = 1
)

// artifactEnvelope wraps opaque model bytes so that a truncated
// or otherwise damaged value can be told apart from a missing one.
type artifactEnvelope struct {
	Version   int       `msgpack:"version"`
	CreatedAt time.Time `msgpack:"createdAt"`
	Info      string    `msgpack:"info"`
	Checksum  uint32    `msgpack:"checksum"`
	Data      []byte    `msgpack:"data"`
}

func encodeKey(prefix byte, key string) []byte {
	keyBytes := make([]byte, 1+len(key))
	keyBytes[0] = prefix
	copy(keyBytes[1:], []byte(key))
	return keyBytes
}

func encodeArtifact(art Artifact) ([]byte, error) {
	env := artifactEnvelope{
		Version:   artifactFormatVersion,
		CreatedAt: art.CreatedAt.UTC(),
		Info:      art.Info,
		Checksum:  crc32.ChecksumIEEE(art.Data),
		Data:      art.Data,
	}
	return msgpack.Marshal(&env)
}

func decodeArtifact(data []byte) (Artifact, error) {
	var env artifactEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s", ErrArtifactCorrupt, err)
	}
	if env.Version != artifactFormatVersion {
		return Artifact{}, fmt.Errorf("%w: unsupported format version %d", ErrArtifactCorrupt, env.Version)
	}
	if crc32.ChecksumIEEE(env.Data) != env.Checksum {
		return Artifact{}, fmt.Errorf("%w: checksum mismatch", ErrArtifactCorrupt)
	}
	return Artifact{
		Data:      env.Data,
		CreatedAt: env.CreatedAt,
		Info:      env.Info,
	}, nil
}

func encodeTime(t time.Time) []byte {
	buf := make([]byte, 16) // 8 bytes for seconds + 8 bytes for nanoseconds
	utc := t.UTC()
	binary.BigEndian.PutUint64(buf[0:8], uint64(utc.Unix()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(utc.Nanosecond()))
	return buf
}

func decodeTime(data []byte) (time.Time, error) {
	if len(data) != 16 {
		return time.Time{}, fmt.Errorf("invalid byte slice length: expected 16, got %d", len(data))
	}
	seconds := int64(binary.BigEndian.Uint64(data[0:8]))
	nanoseconds := int64(binary.BigEndian.Uint64(data[8:16]))
	return time.Unix(seconds, nanoseconds).UTC(), nil
}
