package vm

import "testing"

func TestOpcodeWidthCoversAllFamilies(t *testing.T) {
	sizedFamilies := []Opcode{OpLoadC1, OpDup1, OpPop1, OpSwap1, OpLoad1, OpStore1,
		OpLoadStatic1, OpAdd1, OpSub1, OpMul1, OpDivS1, OpDivU1, OpModS1, OpModU1,
		OpAnd1, OpOr1, OpXor1, OpNot1, OpShl1, OpShr1, OpSar1, OpJnzC1}
	for _, base := range sizedFamilies {
		for offset, want := range widths {
			op := base + Opcode(offset)
			if got := op.Width(); got != want {
				t.Errorf("%s.Width() = %d, want %d", op.String(), got, want)
			}
		}
	}
}

func TestOpcodeStringRoundTripsThroughMnemonicIndex(t *testing.T) {
	for op := OpNop; op <= maxOpcode; op++ {
		m := op.String()
		if m == "???" {
			t.Errorf("opcode %d has no mnemonic", op)
			continue
		}
		if got := mnemonicIndex[m]; got != op {
			t.Errorf("mnemonicIndex[%q] = %d, want %d", m, got, op)
		}
	}
}

func TestScalarOpcodesHaveZeroWidth(t *testing.T) {
	for _, op := range []Opcode{OpNop, OpLoadSp, OpLoadSb, OpPushPC, OpVtr, OpJmp, OpCall, OpRet, OpInt, OpHalt} {
		if w := op.Width(); w != 0 {
			t.Errorf("%s.Width() = %d, want 0", op.String(), w)
		}
	}
}

func TestOperandBytesForControlFlow(t *testing.T) {
	cases := map[Opcode]int{
		OpJmp:   8,
		OpCall:  8,
		OpRet:   0,
		OpInt:   1,
		OpHalt:  1,
		OpJnzC4: 8,
	}
	for op, want := range cases {
		if got := op.OperandBytes(); got != want {
			t.Errorf("%s.OperandBytes() = %d, want %d", op.String(), got, want)
		}
	}
}
