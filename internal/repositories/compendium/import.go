package compendium

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// packDocument is one YAML document of a pack file. Items use the same
// field names as the persisted JSON form.
type packDocument struct {
	Pack  string           `yaml:"pack"`
	Items []map[string]any `yaml:"items"`
}

// DecodeYAML reads every pack document in r
func DecodeYAML(r io.Reader) ([]PutInput, error) {
	dec := yaml.NewDecoder(r)

	var packs []PutInput
	for {
		var doc packDocument
		err := dec.Decode(&doc)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid pack document")
		}
		if doc.Pack == "" {
			return nil, errors.InvalidArgumentf("pack document %d has no pack name", len(packs)+1)
		}

		input := PutInput{Pack: doc.Pack}
		for i, raw := range doc.Items {
			data, err := json.Marshal(raw)
			if err != nil {
				return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid item").
					WithMeta("pack", doc.Pack).
					WithMeta("index", i)
			}
			var item dnd5e.Item
			if err := json.Unmarshal(data, &item); err != nil {
				return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid item").
					WithMeta("pack", doc.Pack).
					WithMeta("index", i)
			}
			input.Items = append(input.Items, &item)
		}
		packs = append(packs, input)
	}
	return packs, nil
}

// Import decodes r and stores every pack it contains
func Import(ctx context.Context, repo Repository, r io.Reader) ([]string, error) {
	packs, err := DecodeYAML(r)
	if err != nil {
		return nil, err
	}

	var uuids []string
	for _, pack := range packs {
		out, err := repo.Put(ctx, pack)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to import pack %s", pack.Pack)
		}
		uuids = append(uuids, out.UUIDs...)
	}
	return uuids, nil
}
