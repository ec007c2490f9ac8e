package openai

import (
	"sync"

	"github.com/OFFIS-RIT/lexgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// GraphOpenAIClient implements ai.GraphAIClient against any OpenAI-compatible
// chat completions endpoint (OpenAI itself, Gemini's OpenAI endpoint, vLLM,
// LM Studio, ...).
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	extractionModel string

	chatURL string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient.
//
// ExtractionModel specifies the model used for fragment extraction.
// ChatURL and ChatKey configure the chat/completion API endpoint; an empty
// ChatURL targets api.openai.com.
type NewGraphOpenAIClientParams struct {
	ExtractionModel string `validate:"required"`

	ChatURL string
	ChatKey string `validate:"required"`

	// MaxRetries is the SDK's own retry count. The extraction client does its
	// own backoff, so this defaults to 0.
	MaxRetries int
}

// NewGraphOpenAIClient creates and returns a new GraphOpenAIClient.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		ExtractionModel: "gemini-2.5-flash-lite",
//		ChatURL:         "https://generativelanguage.googleapis.com/v1beta/openai/",
//		ChatKey:         os.Getenv("AI_CHAT_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.ChatKey),
		option.WithMaxRetries(params.MaxRetries),
	}
	if params.ChatURL != "" {
		options = append(options, option.WithBaseURL(params.ChatURL))
	}
	client := openai.NewClient(options...)

	return &GraphOpenAIClient{
		extractionModel: params.ExtractionModel,
		chatURL:         params.ChatURL,
		metricsLock:     sync.Mutex{},
		ChatClient:      &client,
	}
}
