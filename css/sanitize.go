package css

import (
	"bytes"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// dropped at-rules: page geometry belongs to generated stylesheet, imports
// and charset make no sense for inlined rules.
var droppedAtRules = map[string]bool{
	"@page":    true,
	"@import":  true,
	"@charset": true,
}

// Sanitize re-serializes user stylesheet dropping at-rules which would
// conflict with generated page layout. Comments are removed.
func Sanitize(data []byte, log *zap.Logger) string {
	if log == nil {
		log = zap.NewNop()
	}

	var sb strings.Builder
	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && err.Error() != "EOF" {
				log.Warn("Stylesheet parse error, rest is ignored", zap.Error(err))
			}
			return sb.String()

		case css.CommentGrammar:
			continue

		case css.AtRuleGrammar:
			if rule := strings.ToLower(string(data)); droppedAtRules[rule] {
				log.Debug("Dropping at-rule", zap.String("rule", rule))
				continue
			}

		case css.BeginAtRuleGrammar:
			if rule := strings.ToLower(string(data)); droppedAtRules[rule] {
				log.Debug("Dropping at-rule block", zap.String("rule", rule))
				skipBlock(parser)
				continue
			}
		}

		sb.Write(data)
		if gt == css.DeclarationGrammar || gt == css.CustomPropertyGrammar {
			sb.WriteByte(':')
		}
		for _, val := range parser.Values() {
			sb.Write(val.Data)
		}
		switch gt {
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			sb.WriteByte('{')
		case css.AtRuleGrammar, css.DeclarationGrammar, css.CustomPropertyGrammar:
			sb.WriteByte(';')
		case css.QualifiedRuleGrammar:
			sb.WriteByte(',')
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			sb.WriteByte('\n')
		}
	}
}

// skipBlock consumes tokens until the end of current at-rule block including
// nested blocks.
func skipBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}
