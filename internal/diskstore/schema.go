package diskstore

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed entry.schema.json
var entrySchemaJSON []byte

var (
	entrySchemaOnce sync.Once
	entrySchema     *jsonschema.Schema
	entrySchemaErr  error
)

func compiledEntrySchema() (*jsonschema.Schema, error) {
	entrySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("entry.schema.json", bytes.NewReader(entrySchemaJSON)); err != nil {
			entrySchemaErr = fmt.Errorf("failed to load entry schema: %w", err)
			return
		}
		entrySchema, entrySchemaErr = compiler.Compile("entry.schema.json")
		if entrySchemaErr != nil {
			entrySchemaErr = fmt.Errorf("failed to compile entry schema: %w", entrySchemaErr)
		}
	})
	return entrySchema, entrySchemaErr
}

// decodeEntry validates raw against the blob schema and decodes it.
func decodeEntry(raw []byte) (*Entry, error) {
	schema, err := compiledEntrySchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &entry, nil
}

func encodeEntry(entry *Entry) ([]byte, error) {
	if entry.SchemaVersion == 0 {
		entry.SchemaVersion = SchemaVersion
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return data, nil
}

func recordFor(bookID, location string, e *Entry) Record {
	return Record{
		BookID:   bookID,
		Location: location,
		CachedAt: e.CachedAt,
		FileHash: e.FileHash,
		Metadata: e.Metadata,
	}
}
