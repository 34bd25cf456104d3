package importers

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// tcfLexer tokenizes the INI-like HANWA test configuration file. A Value
// token carries its leading '=' and runs to the end of the line.
var tcfLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `;[^\n]*`},
	{Name: "Section", Pattern: `\[[^\]\n]*\]`},
	{Name: "EOL", Pattern: `\r?\n`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Value", Pattern: `=[^\r\n]*`},
	{Name: "Key", Pattern: `[^=\r\n\[;][^=\r\n]*`},
})

// tcfFile is the parsed .tcf file.
type tcfFile struct {
	Lines []*tcfLine `parser:"@@*"`
}

type tcfLine struct {
	Section string   `parser:"  @Section"`
	Pair    *tcfPair `parser:"| @@"`
}

type tcfPair struct {
	Key   string `parser:"@Key"`
	Value string `parser:"@Value?"`
}

var tcfParser = participle.MustBuild[tcfFile](
	participle.Lexer(tcfLexer),
	participle.Elide("Comment", "Whitespace", "EOL"),
)

// tcfConfig holds the keys of a .tcf file. Later keys override earlier
// ones; section names are not part of the key.
type tcfConfig map[string]string

func parseTCF(name string, r io.Reader) (tcfConfig, error) {
	file, err := tcfParser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	cfg := make(tcfConfig)
	for _, line := range file.Lines {
		if line.Pair == nil {
			continue
		}
		key := strings.TrimSpace(line.Pair.Key)
		cfg[key] = strings.TrimSpace(strings.TrimPrefix(line.Pair.Value, "="))
	}
	return cfg, nil
}

// Voltage returns the value of Voltage<point>. A trailing 'm' means
// millivolts.
func (c tcfConfig) Voltage(point string) (float64, error) {
	key := "Voltage" + point
	s, ok := c[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	return parseEngineering(s)
}

func parseEngineering(s string) (float64, error) {
	s = strings.TrimSpace(s)
	k := 1.0
	if strings.HasSuffix(s, "m") {
		s = strings.TrimSuffix(s, "m")
		k = 1e-3
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return v * k, nil
}
