// sieve/pkg/compiler/compile_test.go

package compiler

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rgehrsitz/sieve/pkg/types"
)

func compileFilter(t *testing.T, scheme *types.Scheme, expr string) *Filter {
	t.Helper()
	parsed, err := Parse(expr, scheme)
	require.NoError(t, err)
	return Compile(parsed)
}

type binding struct {
	name  string
	value types.Value
}

func execFilter(t *testing.T, f *Filter, bindings ...binding) (bool, error) {
	t.Helper()
	ctx := types.NewExecutionContext(f.Scheme())
	for _, b := range bindings {
		require.NoError(t, ctx.SetFieldValue(b.name, b.value))
	}
	return f.Execute(ctx)
}

func TestExecuteComparisons(t *testing.T) {
	scheme := testScheme(t)
	tests := []struct {
		name     string
		expr     string
		bindings []binding
		expected bool
	}{
		{
			"Int equality hit",
			`tcp.port == 443`,
			[]binding{{"tcp.port", types.IntValue(443)}},
			true,
		},
		{
			"Int equality miss",
			`tcp.port == 443`,
			[]binding{{"tcp.port", types.IntValue(80)}},
			false,
		},
		{
			"Int ordering",
			`tcp.port >= 1024 && tcp.port < 49152`,
			[]binding{{"tcp.port", types.IntValue(8080)}},
			true,
		},
		{
			"Bytes equality",
			`http.host == "example.com"`,
			[]binding{{"http.host", types.BytesValue("example.com")}},
			true,
		},
		{
			"Bytes ordering is lexicographic",
			`http.host < "f"`,
			[]binding{{"http.host", types.BytesValue("example.com")}},
			true,
		},
		{
			"Ip equality across notation",
			`ip.src == 10.0.0.1`,
			[]binding{{"ip.src", types.IpValue(netip.MustParseAddr("10.0.0.1"))}},
			true,
		},
		{
			"Bool field bare",
			`tcp.syn`,
			[]binding{{"tcp.syn", types.BoolValue(true)}},
			true,
		},
		{
			"Negation",
			`not tcp.syn`,
			[]binding{{"tcp.syn", types.BoolValue(true)}},
			false,
		},
		{
			"Bool against literal",
			`tcp.syn == false`,
			[]binding{{"tcp.syn", types.BoolValue(false)}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := compileFilter(t, scheme, tt.expr)
			got, err := execFilter(t, f, tt.bindings...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExecuteContains(t *testing.T) {
	scheme := testScheme(t)
	tests := []struct {
		name     string
		expr     string
		host     string
		expected bool
	}{
		{"Substring present", `http.host contains "ample"`, "example.com", true},
		{"Substring absent", `http.host contains "nginx"`, "example.com", false},
		{"Needle at start", `http.host contains "exam"`, "example.com", true},
		{"Needle at end", `http.host contains ".com"`, "example.com", true},
		{"Whole string", `http.host contains "example.com"`, "example.com", true},
		{"Needle longer than haystack", `http.host contains "example.com.au"`, "example.com", false},
		{"Empty needle always matches", `http.host contains ""`, "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := compileFilter(t, scheme, tt.expr)
			got, err := execFilter(t, f, binding{"http.host", types.BytesValue(tt.host)})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExecuteMatches(t *testing.T) {
	scheme := testScheme(t)
	f := compileFilter(t, scheme, `http.user_agent matches "(?i)curl/[0-9]+"`)

	got, err := execFilter(t, f, binding{"http.user_agent", types.BytesValue("CURL/7.88")})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = execFilter(t, f, binding{"http.user_agent", types.BytesValue("Mozilla/5.0")})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestExecuteCidrMembership(t *testing.T) {
	scheme := testScheme(t)
	f := compileFilter(t, scheme, `ip.src in { 10.0.0.0/8 192.168.1.0/24 fe80::/10 203.0.113.7 }`)

	tests := []struct {
		addr     string
		expected bool
	}{
		{"10.1.2.3", true},
		{"10.255.255.255", true},
		{"11.0.0.1", false},
		{"192.168.1.99", true},
		{"192.168.2.1", false},
		{"fe80::dead:beef", true},
		{"fd00::1", false},
		{"203.0.113.7", true}, // bare address is a host network
		{"203.0.113.8", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := execFilter(t, f, binding{"ip.src", types.IpValue(netip.MustParseAddr(tt.addr))})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExecuteSetMembership(t *testing.T) {
	scheme := testScheme(t)

	ports := compileFilter(t, scheme, `tcp.port in { 80, 443, 8080 }`)
	got, err := execFilter(t, ports, binding{"tcp.port", types.IntValue(443)})
	require.NoError(t, err)
	assert.True(t, got)
	got, err = execFilter(t, ports, binding{"tcp.port", types.IntValue(22)})
	require.NoError(t, err)
	assert.False(t, got)

	hosts := compileFilter(t, scheme, `http.host in { "a.com" "b.com" }`)
	got, err = execFilter(t, hosts, binding{"http.host", types.BytesValue("b.com")})
	require.NoError(t, err)
	assert.True(t, got)
	got, err = execFilter(t, hosts, binding{"http.host", types.BytesValue("c.com")})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestExecuteElementMembership(t *testing.T) {
	scheme := testScheme(t)

	tags := types.NewArrayValue(types.Bytes())
	require.NoError(t, tags.Append(types.BytesValue("admin")))
	require.NoError(t, tags.Append(types.BytesValue("beta")))

	f := compileFilter(t, scheme, `"admin" in tags`)
	got, err := execFilter(t, f, binding{"tags", tags})
	require.NoError(t, err)
	assert.True(t, got)

	f = compileFilter(t, scheme, `"root" in tags`)
	got, err = execFilter(t, f, binding{"tags", tags})
	require.NoError(t, err)
	assert.False(t, got)

	headers := types.NewMapValue(types.Bytes())
	require.NoError(t, headers.Insert("host", types.BytesValue("example.com")))

	f = compileFilter(t, scheme, `"example.com" in http.headers`)
	got, err = execFilter(t, f, binding{"http.headers", headers})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestExecutePathAccess(t *testing.T) {
	scheme := testScheme(t)

	headers := types.NewMapValue(types.Bytes())
	require.NoError(t, headers.Insert("host", types.BytesValue("example.com")))

	f := compileFilter(t, scheme, `http.headers["host"] == "example.com"`)
	got, err := execFilter(t, f, binding{"http.headers", headers})
	require.NoError(t, err)
	assert.True(t, got)

	// An absent key reads as a missing field, not a panic or a silent false.
	f = compileFilter(t, scheme, `http.headers["x-forwarded-for"] == "x"`)
	_, err = execFilter(t, f, binding{"http.headers", headers})
	var missing *types.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Field, "x-forwarded-for")

	tags := types.NewArrayValue(types.Bytes())
	require.NoError(t, tags.Append(types.BytesValue("first")))

	f = compileFilter(t, scheme, `tags[0] == "first"`)
	got, err = execFilter(t, f, binding{"tags", tags})
	require.NoError(t, err)
	assert.True(t, got)

	f = compileFilter(t, scheme, `tags[5] == "first"`)
	_, err = execFilter(t, f, binding{"tags", tags})
	require.ErrorAs(t, err, &missing)
}

func TestExecuteShortCircuit(t *testing.T) {
	scheme := testScheme(t)

	// The right operand references an unbound field; short-circuiting
	// must prevent the lookup from ever happening.
	f := compileFilter(t, scheme, `tcp.port == 80 && http.host == "x"`)
	got, err := execFilter(t, f, binding{"tcp.port", types.IntValue(443)})
	require.NoError(t, err)
	assert.False(t, got)

	f = compileFilter(t, scheme, `tcp.port == 443 || http.host == "x"`)
	got, err = execFilter(t, f, binding{"tcp.port", types.IntValue(443)})
	require.NoError(t, err)
	assert.True(t, got)

	// Once the left side no longer decides the outcome, the missing
	// binding surfaces as an error.
	f = compileFilter(t, scheme, `tcp.port == 80 || http.host == "x"`)
	_, err = execFilter(t, f, binding{"tcp.port", types.IntValue(443)})
	var missing *types.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "http.host", missing.Field)
}

func TestExecuteConstFolding(t *testing.T) {
	scheme := testScheme(t)
	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{"True literal", `true`, true},
		{"False literal", `false`, false},
		{"Literal comparison", `1 < 2`, true},
		{"Folded negation", `not false`, true},
		{"Neutral constant dropped", `true && false`, false},
		{"Absorbing or", `false || true`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := compileFilter(t, scheme, tt.expr)
			_, isConst := f.root.(constEval)
			assert.True(t, isConst, "field-free expression should fold to a constant")
			got, err := execFilter(t, f)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExecuteFoldingKeepsNeededOperands(t *testing.T) {
	scheme := testScheme(t)

	// `true &&` is neutral and folds away entirely, leaving the field
	// comparison as the whole filter.
	f := compileFilter(t, scheme, `true && tcp.port == 443`)
	got, err := execFilter(t, f, binding{"tcp.port", types.IntValue(443)})
	require.NoError(t, err)
	assert.True(t, got)

	// `|| true` truncates the list after the absorbing constant but the
	// preceding field operand still runs first, keeping evaluation order
	// observable.
	f = compileFilter(t, scheme, `tcp.port == 80 || true`)
	got, err = execFilter(t, f, binding{"tcp.port", types.IntValue(443)})
	require.NoError(t, err)
	assert.True(t, got)

	_, err = execFilter(t, f)
	var missing *types.MissingFieldError
	require.ErrorAs(t, err, &missing)
}

func TestExecuteSchemeIdentity(t *testing.T) {
	scheme := testScheme(t)
	other, err := types.NewScheme(types.FieldDef{Name: "tcp.port", Type: types.Int()})
	require.NoError(t, err)

	f := compileFilter(t, scheme, `tcp.port == 443`)
	ctx := types.NewExecutionContext(other)
	require.NoError(t, ctx.SetFieldValue("tcp.port", types.IntValue(443)))

	_, execErr := f.Execute(ctx)
	assert.Error(t, execErr)
}

func TestExecuteDeterminism(t *testing.T) {
	scheme := testScheme(t)
	f := compileFilter(t, scheme, `tcp.port in { 80, 443 } && http.host contains "exa"`)

	for i := 0; i < 100; i++ {
		got, err := execFilter(t, f,
			binding{"tcp.port", types.IntValue(443)},
			binding{"http.host", types.BytesValue("example.com")},
		)
		require.NoError(t, err)
		require.True(t, got)
	}
}

func TestFilterFields(t *testing.T) {
	scheme := testScheme(t)
	f := compileFilter(t, scheme, `tcp.port == 443 && http.host == "x"`)
	assert.Equal(t, []string{"tcp.port", "http.host"}, f.Fields())
	assert.Equal(t, `tcp.port == 443 && http.host == "x"`, f.Text())
}

func TestFilterConcurrentExecution(t *testing.T) {
	scheme := testScheme(t)
	f := compileFilter(t, scheme, `tcp.port == 443`)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 1000; i++ {
				ctx := types.NewExecutionContext(scheme)
				if err := ctx.SetFieldValue("tcp.port", types.IntValue(443)); err != nil {
					t.Error(err)
					return
				}
				got, err := f.Execute(ctx)
				if err != nil || !got {
					t.Errorf("unexpected result %v %v", got, err)
					return
				}
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
