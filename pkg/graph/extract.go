package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/ai"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
)

const defaultMaxRetries = 3

// Extractor turns one record into a graph fragment through the
// text-generation service.
//
// An Extractor should be created using NewExtractor.
type Extractor struct {
	aiClient    ai.GraphAIClient
	kind        string
	vocab       common.Vocabulary
	maxRetries  int
	temperature float64
	structured  bool
	repairJSON  bool
	system      []string
	thinking    string
	fallback    string
	backoff     util.BackoffFunc
	sleep       util.SleepFunc
}

// NewExtractorParams defines the configuration of an Extractor.
//
// Kind names the record kind and prefixes record node ids ("Article").
// MaxRetries bounds the attempts per record and defaults to 3.
// StructuredOutput asks the service for schema-constrained JSON.
// RepairJSON lets near-valid responses through jsonrepair before they are
// reported as malformed.
// SystemPrompt and Thinking are passed to the service on every call.
// FallbackModel, when set, replaces the client's model on the final attempt.
// Backoff and Sleep default to util.ExponentialJitter and util.Sleep.
type NewExtractorParams struct {
	AIClient    ai.GraphAIClient `validate:"required"`
	Kind        string           `validate:"required"`
	Vocabulary  common.Vocabulary
	MaxRetries  int `validate:"gte=0"`
	Temperature float64

	StructuredOutput bool
	RepairJSON       bool

	SystemPrompt  string
	Thinking      string
	FallbackModel string

	Backoff util.BackoffFunc
	Sleep   util.SleepFunc
}

// ExtractResult carries per-call details useful for logging and error
// reporting.
type ExtractResult struct {
	RecordID string
	Attempts int
	Cleaned  string
}

// NewExtractor creates an Extractor from params.
//
// Example:
//
//	extractor, err := graph.NewExtractor(graph.NewExtractorParams{
//		AIClient:   aiClient,
//		Kind:       common.LabelArticle,
//		Vocabulary: common.DefaultVocabulary(),
//	})
func NewExtractor(params NewExtractorParams) (*Extractor, error) {
	if err := util.ValidateStruct(params); err != nil {
		return nil, fmt.Errorf("invalid extractor params: %w", err)
	}

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	vocab := params.Vocabulary
	if len(vocab.Labels) == 0 && len(vocab.EdgeTypes) == 0 {
		vocab = common.DefaultVocabulary()
	}
	backoff := params.Backoff
	if backoff == nil {
		backoff = util.ExponentialJitter
	}

	return &Extractor{
		aiClient:    params.AIClient,
		kind:        params.Kind,
		vocab:       vocab,
		maxRetries:  maxRetries,
		temperature: params.Temperature,
		structured:  params.StructuredOutput,
		repairJSON:  params.RepairJSON,
		system:      systemPrompts(params.SystemPrompt),
		thinking:    params.Thinking,
		fallback:    params.FallbackModel,
		backoff:     backoff,
		sleep:       params.Sleep,
	}, nil
}

func (e *Extractor) Kind() string {
	return e.kind
}

func (e *Extractor) Vocabulary() common.Vocabulary {
	return e.vocab
}

// Extract calls the service for rec, retrying service failures with
// exponential backoff, and parses the response into a fragment.
//
// Errors are ErrService (attempts exhausted), ErrEmptyResponse or
// *MalformedJSONError; context errors are returned unchanged. The returned
// ExtractResult is never nil.
func (e *Extractor) Extract(ctx context.Context, rec common.Record) (common.Fragment, *ExtractResult, error) {
	recordID := rec.NodeID(e.kind)
	result := &ExtractResult{RecordID: recordID}

	prompt := BuildPrompt(rec, e.kind, e.vocab)
	opts := []ai.GenerateOption{ai.WithTemperature(e.temperature)}
	if e.structured {
		opts = append(opts, ai.WithFormat("graph_fragment", ai.GenerateSchema(&common.Fragment{})))
	}
	if len(e.system) > 0 {
		opts = append(opts, ai.WithSystemPrompts(e.system...))
	}
	if e.thinking != "" {
		opts = append(opts, ai.WithThinking(e.thinking))
	}

	raw, err := util.RetryWithBackoff(ctx, e.maxRetries, e.backoff, e.sleep,
		func(ctx context.Context, attempt int) (string, error) {
			result.Attempts = attempt + 1
			callOpts := opts
			if e.fallback != "" && attempt == e.maxRetries-1 && attempt > 0 {
				callOpts = append(slices.Clip(opts), ai.WithModel(e.fallback))
			}
			out, err := e.aiClient.GenerateCompletion(ctx, prompt, callOpts...)
			if err != nil {
				logger.Warn("[Extract] service call failed",
					"record", recordID,
					"attempt", attempt+1,
					"max", e.maxRetries,
					"err", err,
				)
			}
			return out, err
		},
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return common.Fragment{}, result, err
		}
		return common.Fragment{}, result, fmt.Errorf("%w: %s after %d attempts: %w", ErrService, recordID, result.Attempts, err)
	}

	frag, cleaned, err := ParseFragment(raw, e.repairJSON)
	result.Cleaned = cleaned
	if err != nil {
		return common.Fragment{}, result, err
	}

	frag.SourceRecordID = recordID
	return frag, result, nil
}

func systemPrompts(prompt string) []string {
	if strings.TrimSpace(prompt) == "" {
		return nil
	}
	return []string{prompt}
}

// CleanResponse trims whitespace and a surrounding code fence (``` or
// ```json) from a raw service response.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "```json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = rest
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseFragment cleans raw and decodes it into a fragment. It returns the
// cleaned text alongside so callers can log exactly what failed to parse.
//
// Decoding is strict. With repair set, a strict failure is retried through
// ai.UnmarshalFlexible and only reported when that fails too.
func ParseFragment(raw string, repair bool) (common.Fragment, string, error) {
	cleaned := CleanResponse(raw)
	if cleaned == "" {
		return common.Fragment{}, cleaned, ErrEmptyResponse
	}

	var frag common.Fragment
	err := decodeFragment(cleaned, &frag)
	if err == nil {
		return normalizeFragment(frag), cleaned, nil
	}

	if repair {
		var repaired common.Fragment
		if rerr := ai.UnmarshalFlexible(cleaned, &repaired); rerr == nil {
			logger.Debug("[Extract] repaired malformed response", "err", err)
			return normalizeFragment(repaired), cleaned, nil
		}
	}

	return common.Fragment{}, cleaned, &MalformedJSONError{Raw: cleaned, Err: err}
}

func decodeFragment(s string, frag *common.Fragment) error {
	if !strings.HasPrefix(s, "{") {
		return errors.New("response is not a JSON object")
	}
	return json.Unmarshal([]byte(s), frag)
}

func normalizeFragment(f common.Fragment) common.Fragment {
	if f.Nodes == nil {
		f.Nodes = []common.Node{}
	}
	if f.Edges == nil {
		f.Edges = []common.Edge{}
	}
	return f
}
