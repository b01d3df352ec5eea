package harmony

import (
	"fmt"
	"strings"
	"time"

	"github.com/looplj/harmonygate/llm"
)

type parserState int

const (
	stateOutside parserState = iota
	stateAwaitRole
	stateAwaitHeader
	stateReadChannel
	stateInMessage
)

// SpecialTokenIDs is the resolved id for each boundary token the parser
// must recognize, produced by ResolveSpecial once per Tokenizer.
type SpecialTokenIDs struct {
	Start   Token
	End     Token
	Message Token
	Channel Token
	Return  Token
	Call    Token
}

// ResolveAll resolves every special token the parser needs against tok.
func ResolveAll(tok Tokenizer) (SpecialTokenIDs, error) {
	var ids SpecialTokenIDs

	var err error

	if ids.Start, err = ResolveSpecial(tok, TokenStart); err != nil {
		return ids, err
	}

	if ids.End, err = ResolveSpecial(tok, TokenEnd); err != nil {
		return ids, err
	}

	if ids.Message, err = ResolveSpecial(tok, TokenMessage); err != nil {
		return ids, err
	}

	if ids.Channel, err = ResolveSpecial(tok, TokenChannel); err != nil {
		return ids, err
	}

	if ids.Return, err = ResolveSpecial(tok, TokenReturn); err != nil {
		return ids, err
	}

	if ids.Call, err = ResolveSpecial(tok, TokenCall); err != nil {
		return ids, err
	}

	return ids, nil
}

// Parser is the incremental Harmony response parser (C3). It holds
// transient per-request state and is discarded at end-of-stream; it must
// never be shared across concurrent requests.
type Parser struct {
	ids SpecialTokenIDs

	state   parserState
	channel string

	roleBuf    strings.Builder
	channelBuf strings.Builder

	channels map[string]*strings.Builder
	order    []string

	tokenCount   int
	sawAnyTagged bool
	sawStartTag  bool
	sawMessage   bool
	sawTerminal  bool

	finish *llm.FinishReason
	errMsg string

	started time.Time
}

// NewParser constructs a Parser that recognizes the given special token
// ids (the authoritative, token-based detection path, per DESIGN.md OQ1).
// started is stamped here so Result's reported parse_ms covers every Feed
// call plus ProcessEOS, regardless of whether the caller drives the parser
// directly (the streaming path) or through ParseAll.
func NewParser(ids SpecialTokenIDs) *Parser {
	return &Parser{
		ids:      ids,
		channels: make(map[string]*strings.Builder),
		started:  time.Now(),
	}
}

func (p *Parser) isSpecial(tok EngineToken, id Token, literal string) bool {
	if tok.ID != 0 && tok.ID == id {
		return true
	}

	return tok.ID == 0 && tok.Text == literal
}

func (p *Parser) bufferFor(channel string) *strings.Builder {
	if b, ok := p.channels[channel]; ok {
		return b
	}

	b := &strings.Builder{}
	p.channels[channel] = b
	p.order = append(p.order, channel)

	return b
}

// Feed consumes one engine token and returns zero or more StreamEvents, per
// spec.md §4.3's incremental emission contract. Feed never panics; a
// recovered panic is recorded in the parser's error message and surfaced
// only through ParsedResponse.Meta.Error at finalization.
func (p *Parser) Feed(tok EngineToken) (events []llm.StreamEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.errMsg = fmt.Sprintf("panic recovered: %v", r)
			events = nil
		}
	}()

	p.tokenCount++

	switch p.state {
	case stateOutside:
		if p.isSpecial(tok, p.ids.Start, litStart) {
			p.sawStartTag = true
			p.state = stateAwaitRole
			p.roleBuf.Reset()
		}
		// other tokens outside a message are ignored.
	case stateAwaitRole:
		p.feedAwaitRole(tok)
	case stateAwaitHeader:
		p.feedAwaitHeader(tok)
	case stateReadChannel:
		p.feedReadChannel(tok)
	case stateInMessage:
		events = p.feedInMessage(tok)
	}

	return events
}

func (p *Parser) feedAwaitRole(tok EngineToken) {
	if p.isSpecial(tok, p.ids.Channel, litChannel) || p.isSpecial(tok, p.ids.Message, litMessage) {
		// Role marker was empty/omitted; treat header tokens below.
		p.feedAwaitHeader(tok)
		return
	}

	p.roleBuf.WriteString(tok.Text)
	p.state = stateAwaitHeader
}

func (p *Parser) feedAwaitHeader(tok EngineToken) {
	switch {
	case p.isSpecial(tok, p.ids.Channel, litChannel):
		p.state = stateReadChannel
		p.channelBuf.Reset()
	case p.isSpecial(tok, p.ids.Message, litMessage):
		p.sawMessage = true
		p.channel = ""
		p.state = stateInMessage
	default:
		// Tolerate stray tokens while waiting for a header; ignore.
	}
}

func (p *Parser) feedReadChannel(tok EngineToken) {
	if p.isSpecial(tok, p.ids.Message, litMessage) {
		p.sawMessage = true
		p.channel = strings.TrimSpace(p.channelBuf.String())
		p.state = stateInMessage

		return
	}

	p.channelBuf.WriteString(tok.Text)
}

func (p *Parser) feedInMessage(tok EngineToken) []llm.StreamEvent {
	switch {
	case p.isSpecial(tok, p.ids.End, litEnd):
		p.state = stateOutside
		return nil
	case p.isSpecial(tok, p.ids.Return, litReturn):
		p.state = stateOutside
		p.markTerminal(llm.FinishStop)

		return []llm.StreamEvent{p.terminalEvent(llm.FinishStop)}
	case p.isSpecial(tok, p.ids.Call, litCall):
		p.state = stateOutside
		p.markTerminal(llm.FinishToolUse)

		return []llm.StreamEvent{p.terminalEvent(llm.FinishToolUse)}
	case p.isSpecial(tok, p.ids.Start, litStart):
		// Implicit end of previous message; begin a new one.
		p.state = stateAwaitRole
		p.roleBuf.Reset()

		return nil
	default:
		p.sawAnyTagged = true
		p.bufferFor(p.channel).WriteString(tok.Text)

		ev := llm.StreamEvent{
			TokenText:      tok.Text,
			Channel:        llm.ChannelName(p.channel),
			IsFinalChannel: p.channel == string(llm.ChannelFinal),
			DeltaText:      tok.Text,
		}

		return []llm.StreamEvent{ev}
	}
}

func (p *Parser) markTerminal(reason llm.FinishReason) {
	p.sawTerminal = true
	p.finish = &reason
}

func (p *Parser) terminalEvent(reason llm.FinishReason) llm.StreamEvent {
	return llm.StreamEvent{
		Channel:      llm.ChannelName(p.channel),
		FinishReason: &reason,
	}
}

// ProcessEOS finalizes the parser at end-of-stream (spec.md §4.3
// "Finalization"). If the stream ended mid-message with no terminal
// marker, the open message is closed implicitly and the finish reason is
// set to length (budget exhausted).
func (p *Parser) ProcessEOS() llm.StreamEvent {
	if p.state == stateInMessage && !p.sawTerminal {
		p.state = stateOutside
		p.markTerminal(llm.FinishLength)
	}

	reason := llm.FinishStop
	if p.finish != nil {
		reason = *p.finish
	}

	return llm.StreamEvent{FinishReason: &reason}
}

// FinishReason returns the terminal classification recorded so far: stop or
// tool_use after a terminal marker, length after ProcessEOS closed an open
// message. It is nil otherwise, including after ProcessEOS when the stream
// ended outside a message.
func (p *Parser) FinishReason() *llm.FinishReason {
	return p.finish
}

// Result builds the structured ParsedResponse from accumulated state. It
// should be called after feeding every token and calling ProcessEOS.
//
// suppressAnalysis gates only the analysis (chain-of-thought) channel,
// never commentary or tool_use: those carry operational content (tool
// calls, their commentary preamble) that detection (C14) needs regardless
// of whether the caller opted into seeing reasoning traces.
func (p *Parser) Result(suppressAnalysis bool) *llm.ParsedResponse {
	resp := &llm.ParsedResponse{
		Channels: map[string]string{},
		Meta:     ParseMetaFrom(p),
	}

	if final, ok := p.channels[string(llm.ChannelFinal)]; ok {
		resp.Final = strings.TrimSpace(final.String())
	}

	if !suppressAnalysis {
		if analysis, ok := p.channels[string(llm.ChannelAnalysis)]; ok {
			resp.Analysis = strings.TrimSpace(analysis.String())
		}
	}

	if commentary, ok := p.channels[string(llm.ChannelCommentary)]; ok {
		resp.Commentary = strings.TrimSpace(commentary.String())
	}

	for name, buf := range p.channels {
		switch name {
		case string(llm.ChannelFinal), string(llm.ChannelAnalysis), string(llm.ChannelCommentary):
			continue
		default:
			resp.Channels[name] = strings.TrimSpace(buf.String())
		}
	}

	return resp
}

// ParseMetaFrom snapshots bookkeeping fields into a llm.ParseMeta. ParseMS
// is measured from NewParser to this call, so it should be read once, right
// after the last Feed/ProcessEOS call.
func ParseMetaFrom(p *Parser) llm.ParseMeta {
	return llm.ParseMeta{
		TokenCount:   p.tokenCount,
		ParseMS:      time.Since(p.started).Milliseconds(),
		MessageCount: len(p.order),
		Error:        p.errMsg,
	}
}

// IsValid reports whether the token stream meets spec.md §4.3's minimal
// well-formedness bar: at least one <|start|>, one <|message|>, at least
// one <|end|> or <|return|>, and at least one non-empty recovered message.
func IsValid(ids SpecialTokenIDs, tokens []EngineToken) bool {
	sawStart, sawMessage, sawEndOrReturn := false, false, false

	p := NewParser(ids)

	for _, tok := range tokens {
		if p.isSpecial(tok, ids.Start, litStart) {
			sawStart = true
		}

		if p.isSpecial(tok, ids.Message, litMessage) {
			sawMessage = true
		}

		if p.isSpecial(tok, ids.End, litEnd) || p.isSpecial(tok, ids.Return, litReturn) {
			sawEndOrReturn = true
		}

		p.Feed(tok)
	}

	p.ProcessEOS()

	hasNonEmptyMessage := false

	for _, buf := range p.channels {
		if strings.TrimSpace(buf.String()) != "" {
			hasNonEmptyMessage = true
			break
		}
	}

	return sawStart && sawMessage && sawEndOrReturn && hasNonEmptyMessage
}

// ParseAll runs the machine over a complete token list and produces a
// ParsedResponse (spec.md §4.3 "Structured output"). Only empty input
// raises ErrInvalidInput; every other malformed shape degrades gracefully
// per the parser's must-not-throw contract.
func ParseAll(ids SpecialTokenIDs, tokenizer Tokenizer, tokens []EngineToken, extractFinalOnly bool) (*llm.ParsedResponse, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty token stream", llm.ErrInvalidInput)
	}

	p := NewParser(ids)

	for _, tok := range tokens {
		p.Feed(tok)
	}

	p.ProcessEOS()

	resp := p.Result(extractFinalOnly)

	if !p.sawAnyTagged {
		resp.Final = fallbackFinal(tokenizer, tokens)

		if resp.Meta.Error == "" {
			resp.Meta.Error = "no channel-tagged content recovered; used fallback strip-tags path"
		}
	}

	return resp, nil
}

// fallbackFinal implements spec.md §4.3's fallback path: strip every token
// whose decoded form starts with "<|" and return the remainder.
func fallbackFinal(tokenizer Tokenizer, tokens []EngineToken) string {
	var b strings.Builder

	for _, tok := range tokens {
		text := tok.Text
		if text == "" && tokenizer != nil {
			if decoded, err := tokenizer.Decode([]Token{tok.ID}); err == nil {
				text = decoded
			}
		}

		if strings.HasPrefix(strings.TrimSpace(text), "<|") {
			continue
		}

		b.WriteString(text)
	}

	return strings.TrimSpace(b.String())
}
