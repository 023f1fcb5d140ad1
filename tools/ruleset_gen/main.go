// sieve/tools/ruleset_gen/main.go

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Generates a random but well-typed ruleset document for load testing
// and demos. Every generated expression type-checks against the
// generated scheme, so the output always compiles.

type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Rule struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Priority   int    `json:"priority"`
}

type Ruleset struct {
	Name   string     `json:"name"`
	Scheme []FieldDef `json:"scheme"`
	Rules  []Rule     `json:"rules"`
}

var scheme = []FieldDef{
	{Name: "http.host", Type: "Bytes"},
	{Name: "http.path", Type: "Bytes"},
	{Name: "http.user_agent", Type: "Bytes"},
	{Name: "http.method", Type: "Bytes"},
	{Name: "tcp.port", Type: "Int"},
	{Name: "tcp.bytes", Type: "Int"},
	{Name: "ip.src", Type: "Ip"},
	{Name: "ssl", Type: "Bool"},
}

var (
	bytesFields = []string{"http.host", "http.path", "http.user_agent", "http.method"}
	intFields   = []string{"tcp.port", "tcp.bytes"}
	cidrs       = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "203.0.113.0/24", "fe80::/10"}
)

func bytesTerm() string {
	field := bytesFields[rand.Intn(len(bytesFields))]
	switch rand.Intn(3) {
	case 0:
		return fmt.Sprintf("%s == %q", field, gofakeit.DomainName())
	case 1:
		return fmt.Sprintf("%s contains %q", field, gofakeit.Word())
	default:
		return fmt.Sprintf("%s in { %q %q }", field, gofakeit.DomainName(), gofakeit.DomainName())
	}
}

func intTerm() string {
	field := intFields[rand.Intn(len(intFields))]
	ops := []string{"==", "!=", "<", "<=", ">", ">="}
	if rand.Intn(3) == 0 {
		return fmt.Sprintf("%s in { %d, %d, %d }",
			field, gofakeit.Number(1, 65535), gofakeit.Number(1, 65535), gofakeit.Number(1, 65535))
	}
	return fmt.Sprintf("%s %s %d", field, ops[rand.Intn(len(ops))], gofakeit.Number(1, 65535))
}

func ipTerm() string {
	n := rand.Intn(len(cidrs)-1) + 1
	picked := make([]string, 0, n)
	for _, i := range rand.Perm(len(cidrs))[:n] {
		picked = append(picked, cidrs[i])
	}
	expr := "ip.src in {"
	for _, c := range picked {
		expr += " " + c
	}
	return expr + " }"
}

func boolTerm() string {
	if rand.Intn(2) == 0 {
		return "ssl"
	}
	return "not ssl"
}

func term() string {
	switch rand.Intn(4) {
	case 0:
		return bytesTerm()
	case 1:
		return intTerm()
	case 2:
		return ipTerm()
	default:
		return boolTerm()
	}
}

func generateExpression(depth int) string {
	if depth > 2 || rand.Float32() < 0.6 {
		return term()
	}

	op := "&&"
	if rand.Float32() < 0.5 {
		op = "||"
	}
	left := generateExpression(depth + 1)
	right := generateExpression(depth + 1)
	if rand.Float32() < 0.3 {
		return fmt.Sprintf("not (%s %s %s)", left, op, right)
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right)
}

func generateRule(index int) Rule {
	return Rule{
		Name:       fmt.Sprintf("rule-%d", index),
		Expression: generateExpression(0),
		Priority:   rand.Intn(20) + 1,
	}
}

func main() {
	numRules := flag.Int("rules", 1000, "Number of rules to generate")
	outputFile := flag.String("output", "generated_ruleset.json", "Output file name")
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	ruleset := Ruleset{Name: "generated", Scheme: scheme, Rules: make([]Rule, *numRules)}
	for i := range ruleset.Rules {
		ruleset.Rules[i] = generateRule(i + 1)
	}

	file, err := os.Create(*outputFile)
	if err != nil {
		fmt.Printf("Error creating file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ruleset); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated ruleset with %d rules. Saved to %s\n", *numRules, *outputFile)
}
