// Package attribution asks an LLM to name the diarized speakers of an
// episode and write its synopsis.
package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"whisperer/internal/services/llm"
	"whisperer/internal/transcript"
)

// DegradedSynopsis replaces the synopsis when attribution fails for good.
const DegradedSynopsis = "LLM attribution failed"

// Prompt is the system prompt sent with every transcript.
const Prompt = `The following is a podcast transcript. Analyze it and return:

1. A JSON speaker attribution block wrapped in <attribution> tags, mapping each speaker ID to their name:
<attribution>
{"SPEAKER_00": "Name", "SPEAKER_01": "Name"}
</attribution>

2. A two to four paragraph synopsis wrapped in <synopsis> tags:
<synopsis>
Synopsis text here.
</synopsis>

If you can't determine a speaker's name, use "Unknown".`

// ErrParse reports a reply without a usable attribution or synopsis block.
// The attribute stage treats it as retryable.
var ErrParse = errors.New("unparseable attribution reply")

var (
	attributionBlock = regexp.MustCompile(`(?s)<attribution>\s*(\{.*?\})\s*</attribution>`)
	synopsisBlock    = regexp.MustCompile(`(?s)<synopsis>\s*(.*?)\s*</synopsis>`)
	speakerLine      = regexp.MustCompile(`"(SPEAKER_\d+)"\s*:\s*"([^"]+)"`)
)

// Result is a parsed attribution.
type Result struct {
	Speakers transcript.SpeakerMap
	Synopsis string
	Model    string
	Degraded bool
}

// Completer is the LLM surface attribution needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Attributor turns transcript chunks into a Result.
type Attributor struct {
	client Completer
	model  string
}

func New(client Completer, model string) *Attributor {
	return &Attributor{client: client, model: model}
}

// Attribute sends the chunks as JSON and parses the reply. Transport errors
// pass through unchanged so callers can classify them.
func (a *Attributor) Attribute(ctx context.Context, chunks []transcript.Chunk) (Result, error) {
	payload, err := json.Marshal(chunks)
	if err != nil {
		return Result{}, fmt.Errorf("encode chunks: %w", err)
	}
	reply, err := a.client.Complete(ctx, Prompt, string(payload))
	if err != nil {
		return Result{}, err
	}
	result, err := Parse(reply)
	if err != nil {
		return Result{}, err
	}
	result.Model = a.model
	return result, nil
}

// Parse extracts the speaker map and synopsis from an LLM reply. A malformed
// JSON block is salvaged line by line.
func Parse(reply string) (Result, error) {
	block := attributionBlock.FindStringSubmatch(reply)
	if block == nil {
		return Result{}, fmt.Errorf("%w: no <attribution> block", ErrParse)
	}
	speakers := transcript.SpeakerMap{}
	if err := llm.DecodeLLMJSON(block[1], &speakers); err != nil {
		for _, m := range speakerLine.FindAllStringSubmatch(block[1], -1) {
			speakers[m[1]] = m[2]
		}
	}
	if len(speakers) == 0 {
		return Result{}, fmt.Errorf("%w: empty speaker map", ErrParse)
	}
	syn := synopsisBlock.FindStringSubmatch(reply)
	if syn == nil || strings.TrimSpace(syn[1]) == "" {
		return Result{}, fmt.Errorf("%w: no <synopsis> block", ErrParse)
	}
	return Result{Speakers: speakers, Synopsis: strings.TrimSpace(syn[1])}, nil
}

// Degraded is the fallback result: every speaker Unknown and a placeholder
// synopsis.
func Degraded(chunks []transcript.Chunk) Result {
	return Result{
		Speakers: transcript.DegradedMap(chunks),
		Synopsis: DegradedSynopsis,
		Degraded: true,
	}
}
