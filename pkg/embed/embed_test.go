package erkao_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	erkao "github.com/erkao-lang/erkao/pkg/embed"
)

// User is bound by reference, so a method call from script mutates the
// Go struct a host still holds a pointer to.
type User struct {
	Name  string
	Score int
}

func (u *User) AddScore(points int) { u.Score += points }
func (u *User) GetStatus() string   { return u.Name + " has " + itoa(u.Score) + " points" }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

type Calculator struct {
	BaseValue int
}

func (c *Calculator) Add(a, b int) int      { return c.BaseValue + a + b }
func (c *Calculator) Multiply(a, b int) int { return a * b }

func TestBindGoFunctionAndEval(t *testing.T) {
	vm := erkao.New()
	require.NoError(t, vm.Bind("double", func(x int) int { return x * 2 }))

	res, err := vm.Eval("return double(21);")
	require.NoError(t, err)
	require.EqualValues(t, 42, res)
}

func TestBindHostObjectFieldAndMethod(t *testing.T) {
	vm := erkao.New()
	user := &User{Name: "Alice", Score: 10}
	require.NoError(t, vm.Bind("player", user))

	res, err := vm.Eval(`
		let name = player.Name;
		player.AddScore(5);
		let status = player.GetStatus();
		return [name, status];
	`)
	require.NoError(t, err)

	list, ok := res.([]interface{})
	require.True(t, ok, "expected a slice result, got %T", res)
	require.Equal(t, "Alice", list[0])
	require.Equal(t, "Alice has 15 points", list[1])
	require.Equal(t, 15, user.Score, "the method call must mutate the Go struct through the pointer")
}

func TestBindStructByValueMarshalsToAMap(t *testing.T) {
	vm := erkao.New()
	require.NoError(t, vm.Set("cfg", Calculator{BaseValue: 7}))

	res, err := vm.Eval("return cfg.BaseValue;")
	require.NoError(t, err)
	require.EqualValues(t, 7, res)
}

func TestCallScriptDefinedFunction(t *testing.T) {
	vm := erkao.New()
	_, err := vm.Eval(`fun greet(name) { return "Hello, " + name + "!"; }`)
	require.NoError(t, err)

	res, err := vm.Call("greet", "World")
	require.NoError(t, err)
	require.Equal(t, "Hello, World!", res)
}

func TestCallWithBoundObjects(t *testing.T) {
	vm := erkao.New()
	calc := &Calculator{BaseValue: 0}
	require.NoError(t, vm.Bind("calculator", calc))

	_, err := vm.Eval(`
		fun process(name, score) {
			let bonus = calculator.Multiply(score, 2);
			return bonus;
		}
	`)
	require.NoError(t, err)

	res, err := vm.Call("process", "Alice", 50)
	require.NoError(t, err)
	require.EqualValues(t, 100, res)
}

func TestSuccessiveEvalsShareGlobalScope(t *testing.T) {
	vm := erkao.New()
	_, err := vm.Eval("let counter = 0;")
	require.NoError(t, err)
	_, err = vm.Eval("counter = counter + 1;")
	require.NoError(t, err)
	res, err := vm.Eval("return counter;")
	require.NoError(t, err)
	require.EqualValues(t, 1, res)
}

func TestSetAndGet(t *testing.T) {
	vm := erkao.New()
	require.NoError(t, vm.Set("myValue", 42))

	res, err := vm.Get("myValue")
	require.NoError(t, err)
	require.EqualValues(t, 42, res)
}

func TestGetUndefinedGlobalIsAnError(t *testing.T) {
	vm := erkao.New()
	_, err := vm.Get("nope")
	require.Error(t, err)
}

func TestCallUndefinedFunctionIsAnError(t *testing.T) {
	vm := erkao.New()
	_, err := vm.Call("nope", 1, 2)
	require.Error(t, err)
}

func TestEvalCompileErrorIsReported(t *testing.T) {
	vm := erkao.New()
	_, err := vm.Eval("return 1 + + 2;")
	require.Error(t, err)
}

func TestEvalUncaughtThrowIsReported(t *testing.T) {
	vm := erkao.New()
	_, err := vm.Eval(`throw {message: "boom"};`)
	require.Error(t, err)
}

func TestBindFuncReturningSliceRoundTrips(t *testing.T) {
	vm := erkao.New()
	require.NoError(t, vm.Bind("makeList", func() []int { return []int{1, 2, 3} }))

	res, err := vm.Eval("return makeList();")
	require.NoError(t, err)
	list, ok := res.([]interface{})
	require.True(t, ok, "expected a slice result, got %T", res)
	require.Len(t, list, 3)
}

func TestArrayLiteralRoundTripsAsGoSlice(t *testing.T) {
	vm := erkao.New()
	res, err := vm.Eval("return [1, 2, 3];")
	require.NoError(t, err)
	list, ok := res.([]interface{})
	require.True(t, ok, "expected a slice result, got %T", res)
	require.EqualValues(t, []interface{}{1.0, 2.0, 3.0}, list)
}

func TestMapLiteralRoundTripsAsGoMap(t *testing.T) {
	vm := erkao.New()
	res, err := vm.Eval(`return {name: "Alice", age: 30};`)
	require.NoError(t, err)
	m, ok := res.(map[string]interface{})
	require.True(t, ok, "expected a map result, got %T", res)
	require.Equal(t, "Alice", m["name"])
}

func TestBoundVoidFunction(t *testing.T) {
	vm := erkao.New()
	called := false
	require.NoError(t, vm.Bind("sideEffect", func() { called = true }))

	_, err := vm.Eval("sideEffect(); return null;")
	require.NoError(t, err)
	require.True(t, called)
}
