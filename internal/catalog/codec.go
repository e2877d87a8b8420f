package catalog

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/meridiandb/meridian/pkg/types"
)

// Durable record format: 1 version byte + snappy(msgpack(record)).
const recordFormatVersion = 1

func encodeRecord(v interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to marshal record: %w", err)
	}

	compressed := snappy.Encode(nil, raw)
	buf := make([]byte, 0, len(compressed)+1)
	buf = append(buf, recordFormatVersion)
	buf = append(buf, compressed...)
	return buf, nil
}

func decodeRecord(data []byte, v interface{}) error {
	if len(data) < 1 {
		return fmt.Errorf("catalog: record is empty")
	}
	if data[0] != recordFormatVersion {
		return fmt.Errorf("catalog: unsupported record format version %d", data[0])
	}

	raw, err := snappy.Decode(nil, data[1:])
	if err != nil {
		return fmt.Errorf("catalog: snappy decompress failed: %w", err)
	}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("catalog: failed to unmarshal record: %w", err)
	}
	return nil
}

func encodeTable(t *types.Table) ([]byte, error) {
	return encodeRecord(t)
}

func decodeTable(data []byte) (*types.Table, error) {
	var t types.Table
	if err := decodeRecord(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodePartition(p *types.Partition) ([]byte, error) {
	return encodeRecord(p)
}

func decodePartition(data []byte) (*types.Partition, error) {
	var p types.Partition
	if err := decodeRecord(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
