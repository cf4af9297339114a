package tools

import (
	"fmt"
	"slices"

	"github.com/go-viper/mapstructure/v2"
)

// Plan parameters come from decoded JSON, so numbers arrive as float64 and
// lists as []any. Weak typing lets them land in the structs below; a single
// string also fills a list.

type searchParams struct {
	Query      string   `mapstructure:"query"`
	Source     string   `mapstructure:"source"`
	Sources    []string `mapstructure:"sources"`
	MaxResults int      `mapstructure:"max_results"`
}

// sourceList merges source and sources, dropping blanks.
func (p searchParams) sourceList() []string {
	list := append(slices.Clone(p.Sources), p.Source)
	return slices.DeleteFunc(list, func(s string) bool { return s == "" })
}

type analyzeParams struct {
	Query   string `mapstructure:"query"`
	PaperID string `mapstructure:"paper_id"`
}

type memoryStoreParams struct {
	Key        string `mapstructure:"key"`
	Value      any    `mapstructure:"value"`
	Importance string `mapstructure:"importance"`
	Context    string `mapstructure:"context"`
}

type memoryRetrieveParams struct {
	Key string `mapstructure:"key"`
}

type fileWriteParams struct {
	Filename string `mapstructure:"filename"`
	Content  string `mapstructure:"content"`
}

// decodeParams fills out from params. Unknown keys are ignored.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func required(key, value string) error {
	if value == "" {
		return fmt.Errorf("missing parameter %q", key)
	}
	return nil
}
