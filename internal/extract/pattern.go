package extract

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/vitalscribe/internal/catalog"
	"github.com/ppiankov/vitalscribe/internal/model"
	"github.com/ppiankov/vitalscribe/internal/validate"
)

// Fixed confidences for pattern matches; below what the model path reports
const (
	confidenceFall        = 0.7
	confidenceTemperature = 0.8
	confidenceBP          = 0.8
	confidencePulse       = 0.75
	confidenceSpO2        = 0.75
	confidencePain        = 0.7
	confidenceRespiratory = 0.7
)

// fallYes is the Morse option recorded for any reported fall
const fallYes = "Yes (25 points)"

var (
	// Phrases mentioning falls that are not a fall history
	fallNeutral = regexp.MustCompile(
		`\bfall(?:s|ing)?[\s-]+(?:risk|scale|prevention|precautions?|asleep|assessment)\b|\bmorse fall\b` +
			`|\b(?:at\s+)?(?:(?:high|higher|low|increased|moderate|some)\s+)?risks?\s+(?:of|for)\s+(?:a\s+)?(?:falls?|falling)\b`)

	fallNegation = regexp.MustCompile(
		`\b(?:denies|denied|deny|denying)\s+(?:any\s+)?(?:recent\s+)?(?:history\s+of\s+)?(?:falls?|falling)\b` +
			`|\bno\s+(?:recent\s+|previous\s+|further\s+|history\s+of\s+)?(?:falls?|falling)\b` +
			`|\bnever\s+(?:had\s+a\s+)?(?:fallen|fell|falls?)\b` +
			`|\b(?:has|have|had|did|do|does)\s*(?:n't|not)\s+(?:had\s+any\s+|ever\s+)?(?:fallen|fall|falls)\b` +
			`|(?:冇|無|沒有|未|唔曾|從來冇)(?:曾)?(?:經)?(?:跌|仆|跣)(?:過|倒|親|低)?`)

	fallPositive = regexp.MustCompile(`\b(?:fell|fallen|falls?|falling|slipped|tripped)\b|跌倒|跌親|仆親|跣親|跌咗|跌低`)

	fallCount = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:fell|fallen|falls?|slipped|tripped)(?:\s+down)?\s+(?:about\s+|around\s+)?(\d+|one|two|three|four|five|six|seven|eight|nine|ten|a couple of)\s+times?\b`),
		regexp.MustCompile(`\b(?:fell|fallen|slipped|tripped)(?:\s+down)?\s+(once|twice|thrice)\b`),
		regexp.MustCompile(`\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:previous\s+|recent\s+)?falls\b`),
		regexp.MustCompile(`(?:跌|仆|跣)(?:倒|親|咗|低)?(?:過)?\s*(\d+|[一二兩三四五六七八九十]+)\s*(?:次|趟)`),
	}

	bpPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:\b(?:bp|blood pressure)\b|血壓)\s*(?:is|was|of|at|:|=|係)?\s*(\d{2,3})\s*(?:/|over|on)\s*(\d{2,3})`),
	}
)

var countWords = map[string]int{
	"one": 1, "once": 1, "two": 2, "twice": 2, "a couple of": 2, "three": 3, "thrice": 3,
	"four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"一": 1, "二": 2, "兩": 2, "三": 3, "四": 4, "五": 5, "六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// numericRule extracts one numeric field
type numericRule struct {
	field      model.FieldID
	patterns   []*regexp.Regexp
	confidence float64
	// convert adjusts the captured number using the full submatch; nil keeps it
	convert func(n float64, m []string) float64
}

var numericRules = []numericRule{
	{
		field: catalog.Temperature,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(?:body\s+)?temp(?:erature)?\b\s*(?:is|was|of|at|:|=)?\s*(?:about\s+)?(\d{2,3}(?:\.\d+)?)\s*(°\s*[cf]|degrees?(?:\s+(?:celsius|fahrenheit|c|f))?)?`),
			regexp.MustCompile(`(?:體溫|發燒)\s*(?:係|有)?\s*(\d{2,3}(?:\.\d+)?)\s*(度)?`),
		},
		confidence: confidenceTemperature,
		convert: func(n float64, m []string) float64 {
			unit := ""
			if len(m) > 2 {
				unit = m[2]
			}
			if strings.Contains(unit, "f") || n > 50 {
				return math.Round((n-32)*5/9*10) / 10
			}
			return n
		},
	},
	{
		field: catalog.Pulse,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:\b(?:pulse(?:\s+rate)?|heart\s+rate|hr)\b|脈搏|心跳)\s*(?:is|was|of|at|:|=|係)?\s*(\d{2,3})\b`),
		},
		confidence: confidencePulse,
	},
	{
		field: catalog.RespiratoryRate,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:\b(?:respiratory\s+rate|resp(?:iration)?s?(?:\s+rate)?|rr|breathing\s+rate)\b|呼吸)\s*(?:is|was|of|at|:|=|係)?\s*(\d{1,2})\b`),
		},
		confidence: confidenceRespiratory,
	},
	{
		field: catalog.SpO2,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?:\b(?:spo2|sp02|saturations?|oxygen\s+saturation|o2\s+sats?)\b|血氧)\s*(?:is|was|of|at|:|=|係)?\s*(\d{2,3})\s*%?`),
			// bare "sat" is also a verb, so it needs the percent sign
			regexp.MustCompile(`\bsats?\b\s*(?:is|was|of|at|:|=)?\s*(\d{2,3})\s*%`),
		},
		confidence: confidenceSpO2,
	},
	{
		field: catalog.PainScale,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bpain\b[^.,;]{0,20}?\b(\d{1,2})\s*(?:/|out\s+of)\s*10\b`),
			regexp.MustCompile(`\bpain\s+(?:score|scale|level)\s*(?:is|was|of|:)?\s*(\d{1,2})\b`),
			regexp.MustCompile(`\b(\d{1,2})\s*(?:/|out\s+of)\s*10\b[^.,;]{0,12}\bpain\b`),
			regexp.MustCompile(`痛\D{0,4}?(\d{1,2})\s*分`),
		},
		confidence: confidencePain,
	},
}

// PatternStrategy extracts a small set of high-value fields with regular
// expressions. It needs no external service and never fails on non-blank input.
type PatternStrategy struct {
	catalog Catalog
}

// NewPatternStrategy creates the deterministic fallback strategy
func NewPatternStrategy(cat Catalog) *PatternStrategy {
	return &PatternStrategy{catalog: cat}
}

// Name returns "pattern"
func (p *PatternStrategy) Name() string {
	return StrategyPattern
}

// Extract matches every pattern over the normalized transcript
func (p *PatternStrategy) Extract(ctx context.Context, transcript string) (*Outcome, error) {
	text := Normalize(transcript)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	var out []model.FieldExtraction
	out = append(out, p.falls(text)...)

	for _, r := range numericRules {
		if e, ok := p.numeric(text, r); ok {
			out = append(out, e)
		}
	}
	out = append(out, p.bloodPressure(text)...)

	return &Outcome{Extractions: out}, nil
}

func (p *PatternStrategy) falls(text string) []model.FieldExtraction {
	cleaned := fallNeutral.ReplaceAllStringFunc(text, blank)
	cleaned = fallNegation.ReplaceAllStringFunc(cleaned, blank)

	loc := fallPositive.FindStringIndex(cleaned)
	if loc == nil {
		return nil
	}

	var out []model.FieldExtraction
	source := sentenceAround(text, loc[0], loc[1])
	if e, ok := p.extraction(catalog.MorseHistoryFalling, fallYes, source, confidenceFall); ok {
		out = append(out, e)
	}

	for _, re := range fallCount {
		m := lastSubmatch(re, cleaned)
		if m == nil {
			continue
		}
		n, ok := parseCount(m[1])
		if !ok {
			continue
		}
		if e, ok := p.extraction(catalog.FallFrequency, strconv.Itoa(n), strings.TrimSpace(m[0]), confidenceFall); ok {
			out = append(out, e)
		}
		break
	}
	return out
}

func (p *PatternStrategy) numeric(text string, r numericRule) (model.FieldExtraction, bool) {
	for _, re := range r.patterns {
		m := lastSubmatch(re, text)
		if m == nil {
			continue
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if r.convert != nil {
			n = r.convert(n, m)
		}
		return p.numberExtraction(r.field, n, strings.TrimSpace(m[0]), r.confidence)
	}
	return model.FieldExtraction{}, false
}

func (p *PatternStrategy) bloodPressure(text string) []model.FieldExtraction {
	for _, re := range bpPatterns {
		m := lastSubmatch(re, text)
		if m == nil {
			continue
		}
		sys, err1 := strconv.ParseFloat(m[1], 64)
		dia, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		source := strings.TrimSpace(m[0])
		var out []model.FieldExtraction
		if e, ok := p.numberExtraction(catalog.BPSystolic, sys, source, confidenceBP); ok {
			out = append(out, e)
		}
		if e, ok := p.numberExtraction(catalog.BPDiastolic, dia, source, confidenceBP); ok {
			out = append(out, e)
		}
		return out
	}
	return nil
}

func (p *PatternStrategy) numberExtraction(id model.FieldID, n float64, source string, confidence float64) (model.FieldExtraction, bool) {
	def, ok := p.catalog.Lookup(id)
	if !ok {
		return model.FieldExtraction{}, false
	}
	return p.extraction(id, validate.WithUnit(n, def.Unit), source, confidence)
}

func (p *PatternStrategy) extraction(id model.FieldID, value, source string, confidence float64) (model.FieldExtraction, bool) {
	def, ok := p.catalog.Lookup(id)
	if !ok {
		return model.FieldExtraction{}, false
	}
	return model.FieldExtraction{
		FieldID:         id,
		SectionID:       def.SectionID,
		FieldLabel:      def.Label,
		Value:           value,
		AISourceText:    source,
		ConfidenceScore: confidence,
	}, true
}

// lastSubmatch returns the last match: a later mention overrides an earlier one
func lastSubmatch(re *regexp.Regexp, text string) []string {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	if n, ok := countWords[s]; ok {
		return n, true
	}
	// 十一 .. 十九, 二十
	runes := []rune(s)
	if len(runes) == 2 && runes[0] == '十' {
		if n, ok := countWords[string(runes[1])]; ok {
			return 10 + n, true
		}
	}
	if len(runes) == 2 && runes[1] == '十' {
		if n, ok := countWords[string(runes[0])]; ok {
			return n * 10, true
		}
	}
	return 0, false
}

// blank replaces a match with spaces so byte offsets stay aligned with the source
func blank(s string) string {
	return strings.Repeat(" ", len(s))
}

// sentenceAround returns the sentence of text containing [start, end)
func sentenceAround(text string, start, end int) string {
	const stops = ".!?;。！？；"
	from := strings.LastIndexAny(text[:start], stops) + 1
	to := len(text)
	if i := strings.IndexAny(text[end:], stops); i >= 0 {
		to = end + i
	}
	return strings.TrimSpace(text[from:to])
}
