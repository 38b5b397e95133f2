package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Assemble runs the full pipeline: source -> tokens -> per-line parse ->
// unlinked instructions -> link -> emit. It is a pure function of
// (source, cfg): it never touches a Machine, and reports errors to the
// caller directly rather than mutating shared state.
func Assemble(source string, cfg Config) ([]byte, error) {
	log := logrus.WithField("component", "assembler")

	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	log.WithField("tokens", len(tokens)).Debug("tokenized source")

	groups := statementGroups(tokens)

	var (
		unlinked      []UnlinkedInstruction
		pendingLabels []string
	)
	for _, group := range groups {
		if len(group) == 1 && group[0].Kind == TokLabel {
			pendingLabels = append(pendingLabels, group[0].Text[1:])
			continue
		}
		instr, err := parseStatement(group, cfg)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w (tokens: %v)", group[0].Line, err, tokenTexts(group))
		}
		instr.Labels = append(instr.Labels, pendingLabels...)
		pendingLabels = nil
		unlinked = append(unlinked, instr)
	}
	if len(pendingLabels) > 0 {
		return nil, fmt.Errorf("%w: label(s) %v defined at end of program with no following instruction", ErrParse, pendingLabels)
	}
	log.WithField("instructions", len(unlinked)).Debug("parsed instructions")

	linked, err := link(unlinked, cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("linked labels")

	return emit(linked, cfg), nil
}

func tokenTexts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if t.Text != "" {
			out[i] = t.Text
		} else {
			out[i] = t.Kind.String()
		}
	}
	return out
}
