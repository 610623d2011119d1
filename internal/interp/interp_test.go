package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erkao-lang/erkao/internal/value"
)

func testNumber(t *testing.T, v value.Value, want float64) {
	t.Helper()
	require.True(t, v.IsNumber(), "expected a number, got %s", v.Inspect())
	require.Equal(t, want, v.AsNumber())
}

func TestArithmeticAndConstantFolding(t *testing.T) {
	v, _ := run(t, "return 1 + 2 * 3;")
	testNumber(t, v, 7)
}

func TestAddOverloadOnStrings(t *testing.T) {
	v, _ := run(t, `return "foo" + "bar";`)
	require.Equal(t, "foobar", v.AsObject().(*value.String).Inspect())
}

func TestAddRejectsMixedOperands(t *testing.T) {
	tv := runErr(t, `return 1 + "x";`)
	require.Contains(t, tv.Value.Inspect(), "message")
}

func TestArrayMutation(t *testing.T) {
	v, _ := run(t, `
		let a = [1, 2, 3];
		a[1] = 9;
		return a;
	`)
	arr := v.AsObject().(*value.Array)
	require.Len(t, arr.Items, 3)
	testNumber(t, arr.Items[0], 1)
	testNumber(t, arr.Items[1], 9)
	testNumber(t, arr.Items[2], 3)
}

func TestMapPropertyAndMissingIndex(t *testing.T) {
	v, _ := run(t, `
		let m = {k: 1};
		if (m.k != 1) { return -1; }
		return m["missing"];
	`)
	require.True(t, v.IsNull())
}

func TestMapPropertyHit(t *testing.T) {
	v, _ := run(t, `
		let m = {k: 1};
		return m.k;
	`)
	testNumber(t, v, 1)
}

func TestFunctionCallWithDefaultArguments(t *testing.T) {
	v, _ := run(t, `
		fun add(a, b = 10) {
			return a + b;
		}
		return add(1, 2) + add(1);
	`)
	testNumber(t, v, 14)
}

func TestClassInstantiationAndMethodCall(t *testing.T) {
	v, _ := run(t, `
		class Point {
			init(x, y) {
				this.x = x;
				this.y = y;
			}
			sum() {
				return this.x + this.y;
			}
		}
		let p = Point(3, 4);
		return p.sum();
	`)
	testNumber(t, v, 7)
}

func TestClassInheritance(t *testing.T) {
	v, _ := run(t, `
		class Animal {
			init(name) { this.name = name; }
			speak() { return "..."; }
		}
		class Dog(Animal) {
			speak() { return this.name + " barks"; }
		}
		let d = Dog("Rex");
		return d.speak();
	`)
	require.Equal(t, "Rex barks", v.AsObject().(*value.String).Inspect())
}

func TestInlineCacheAcrossRepeatedCalls(t *testing.T) {
	v, _ := run(t, `
		class Counter {
			init() { this.n = 0; }
			bump() { this.n = this.n + 1; return this.n; }
		}
		let c = Counter();
		c.bump();
		c.bump();
		return c.bump();
	`)
	testNumber(t, v, 3)
}

func TestTryCatchUnwinds(t *testing.T) {
	v, _ := run(t, `
		let caught = null;
		try {
			throw {message: "boom"};
		} catch (e) {
			caught = e.message;
		}
		return caught;
	`)
	require.Equal(t, "boom", v.AsObject().(*value.String).Inspect())
}

func TestTryCatchStackIsRestoredOnThrow(t *testing.T) {
	v, _ := run(t, `
		fun risky(n) {
			if (n < 0) { throw {message: "negative"}; }
			return n * 2;
		}
		let total = 0;
		let i = 0;
		while (i < 3) {
			try {
				total = total + risky(i - 1);
			} catch (e) {
				total = total + 1000;
			}
			i = i + 1;
		}
		return total;
	`)
	// i=0: risky(-1) throws -> +1000; i=1: risky(0)=0 -> +0; i=2: risky(1)=2 -> +2
	testNumber(t, v, 1002)
}

func TestUncaughtThrowPropagatesPastNestedCalls(t *testing.T) {
	tv := runErr(t, `
		fun inner() { throw {message: "deep"}; }
		fun outer() { return inner(); }
		return outer();
	`)
	m := tv.Value.AsObject().(*value.Map)
	msg, ok := m.Get(value.NewInterner().Intern("message"))
	require.True(t, ok)
	require.Equal(t, "deep", msg.AsObject().(*value.String).Inspect())
}

func TestEnumZeroArityVariantIsSingleton(t *testing.T) {
	v, _ := run(t, `
		enum Option { None, Some(value) }
		let a = Option.None;
		let b = Option.None;
		return a == b;
	`)
	require.True(t, v.AsBool())
}

func TestEnumMatchExhaustive(t *testing.T) {
	v, _ := run(t, `
		enum Shape { Circle(r), Square(s) }
		let shape = Shape.Square(5);
		let area = 0;
		match (shape) {
			case Shape.Circle(r): area = r * r * 3;
			case Shape.Square(s): area = s * s;
		}
		return area;
	`)
	testNumber(t, v, 25)
}

func TestArrayDestructuringMatch(t *testing.T) {
	v, _ := run(t, `
		let result = 0;
		match ([1, 2, 3]) {
			case [a, b, c]: result = a + b + c;
		}
		return result;
	`)
	testNumber(t, v, 6)
}

func TestGeneratorYieldAccumulatesReturn(t *testing.T) {
	v, _ := run(t, `
		fun counted() {
			yield 1;
			yield 2;
			yield 3;
		}
		return counted();
	`)
	arr := v.AsObject().(*value.Array)
	require.Len(t, arr.Items, 3)
	testNumber(t, arr.Items[0], 1)
	testNumber(t, arr.Items[1], 2)
	testNumber(t, arr.Items[2], 3)
}

func TestGeneratorFallsBackToExplicitReturnWhenNoYieldRuns(t *testing.T) {
	v, _ := run(t, `
		fun maybeYield(flag) {
			if (flag) {
				yield 1;
				return;
			}
			return 42;
		}
		return maybeYield(false);
	`)
	testNumber(t, v, 42)
}

func TestClosureCapturesDefiningEnvironment(t *testing.T) {
	v, _ := run(t, `
		fun makeAdder(x) {
			fun adder(y) {
				return x + y;
			}
			return adder;
		}
		let add5 = makeAdder(5);
		return add5(3);
	`)
	testNumber(t, v, 8)
}

func TestDeferRunsEachScopeLevelOnceOnMultiLevelUnwind(t *testing.T) {
	// A return nested three scopes deep must run each level's own defer
	// exactly once, innermost first, rather than replaying the innermost
	// scope's defer list once per level it unwinds through.
	v, _ := run(t, `
		let log = "";
		fun f() {
			defer log = log + "A";
			{
				defer log = log + "B";
				{
					defer log = log + "C";
					return 1;
				}
			}
		}
		f();
		return log;
	`)
	require.Equal(t, "CBA", v.AsObject().(*value.String).Inspect())
}

func TestGCSurvivesMidProgramCollection(t *testing.T) {
	// Each loop iteration allocates a fresh, short-lived map that only
	// the final one stays reachable through, forcing the collector's
	// default nursery threshold to run several minor cycles mid-call —
	// exercising Roots() walking the live call frame/operand stack the
	// whole time.
	v, _ := run(t, `
		fun build(n) {
			let acc = [0, 0, 0, 0, 0, 0, 0, 0, 0, 0];
			let i = 0;
			while (i < n) {
				let scratch = {junk: i};
				acc[i] = scratch.junk * scratch.junk;
				i = i + 1;
			}
			return acc;
		}
		let r = build(10);
		return r[9];
	`)
	testNumber(t, v, 81)
}
