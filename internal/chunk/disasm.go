package chunk

import (
	"fmt"
	"strings"
)

// operandWidth returns how many operand bytes follow op, after the
// opcode byte itself. Instructions not listed take zero operand bytes.
func operandWidth(op Opcode) int {
	switch op {
	case OP_CONSTANT, OP_DEFINE_VAR, OP_DEFINE_CONST, OP_GET_VAR, OP_SET_VAR, OP_GET_THIS,
		OP_JUMP, OP_JUMP_IF_FALSE, OP_LOOP, OP_CLOSURE,
		OP_ARRAY, OP_MAP, OP_TRY, OP_IMPORT,
		OP_EXPORT, OP_EXPORT_VALUE, OP_PRIVATE:
		return 2
	case OP_GET_PROPERTY, OP_GET_PROPERTY_OPTIONAL, OP_SET_PROPERTY:
		return 4 // name constant (u16) + inline cache slot (u16)
	case OP_MATCH_ENUM:
		return 4 // enum-name constant (u16) + variant-name constant (u16)
	case OP_INVOKE:
		return 5 // name constant (u16) + arg count (u8) + inline cache slot (u16)
	case OP_EXPORT_FROM:
		return 4 // module-path constant (u16) + name constant (u16)
	case OP_CALL, OP_CALL_OPTIONAL:
		return 1
	default:
		return 0
	}
}

// Disassemble renders every instruction in the chunk as human-readable
// text, for debug tooling and the chunk package's own tests.
func Disassemble(c *Chunk, name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	offset := 0
	for offset < len(c.Code) {
		offset = disassembleOne(&sb, c, offset)
	}
	return sb.String()
}

func disassembleOne(sb *strings.Builder, c *Chunk, offset int) int {
	op := Opcode(c.Code[offset])
	line := 0
	if offset < len(c.Tokens) {
		line = c.Tokens[offset].Line
	}
	fmt.Fprintf(sb, "%04d %4d %-20s", offset, line, op.String())

	switch op {
	case OP_MATCH_ENUM:
		fmt.Fprintf(sb, " enum=%d variant=%d", c.ReadU16(offset+1), c.ReadU16(offset+3))
		sb.WriteByte('\n')
		return offset + 1 + 4
	case OP_EXPORT_FROM:
		fmt.Fprintf(sb, " module=%d name=%d", c.ReadU16(offset+1), c.ReadU16(offset+3))
		sb.WriteByte('\n')
		return offset + 1 + 4
	}

	width := operandWidth(op)
	switch width {
	case 1:
		fmt.Fprintf(sb, " %d", c.Code[offset+1])
	case 2:
		fmt.Fprintf(sb, " %d", c.ReadU16(offset+1))
	case 4:
		fmt.Fprintf(sb, " %d <cache %d>", c.ReadU16(offset+1), c.ReadU16(offset+3))
	case 5:
		fmt.Fprintf(sb, " %d argc=%d <cache %d>", c.ReadU16(offset+1), c.Code[offset+3], c.ReadU16(offset+4))
	}
	sb.WriteByte('\n')
	return offset + 1 + width
}
