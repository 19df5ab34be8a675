package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// maskWidth returns a mask covering the low n*8 bits (n in {1,2,4,8}).
func maskWidth(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(8*n)) - 1
}

// signExtend sign-extends the low n*8 bits of v to a full int64.
func signExtend(v uint64, n int) int64 {
	if n >= 8 {
		return int64(v)
	}
	shift := uint(64 - 8*n)
	return int64(v<<shift) >> shift
}

// Run executes from the current PC (the image's entry offset, on a fresh
// Instance) until a halt opcode or a trap (§4.6, §4.10). It never resumes:
// once it returns, the Instance has moved from `running` to a terminal
// state.
func (i *Instance) Run() error {
	i.state = stateRunning
	i.insCount = 0
	for i.state == stateRunning {
		if i.PC < 0 || i.PC >= len(i.space) {
			i.state = stateTrapped
			err := trap(TrapPCOutOfRange, i.PC, "instruction fetch")
			i.log.WithError(err).Error("vm trapped")
			return err
		}
		opPC := i.PC
		op := Opcode(i.space[i.PC])
		if op > maxOpcode {
			i.state = stateTrapped
			err := trap(TrapUnknownOpcode, opPC, fmt.Sprintf("byte 0x%02x", i.space[opPC]))
			i.log.WithError(err).Error("vm trapped")
			return err
		}
		i.PC++
		operandLen := op.OperandBytes()
		if i.PC+operandLen > len(i.space) {
			i.state = stateTrapped
			err := trap(TrapPCOutOfRange, opPC, "truncated operand")
			i.log.WithError(err).Error("vm trapped")
			return err
		}
		operand := i.space[i.PC : i.PC+operandLen]
		i.PC += operandLen

		if i.log.IsLevelEnabled(logrus.TraceLevel) {
			i.instructionLogger(op).Trace("executing")
		}

		if err := i.execute(opPC, op, operand); err != nil {
			if te, ok := err.(*TrapError); ok {
				te.PC = opPC
			}
			i.state = stateTrapped
			i.log.WithError(err).Error("vm trapped")
			return err
		}
		i.insCount++
	}
	return nil
}

// execute performs the action for one decoded instruction. PC has already
// been advanced past the opcode and its operand; execute may further
// override PC for jumps/calls/returns/interrupt dispatch.
func (i *Instance) execute(opPC int, op Opcode, operand []byte) error {
	if n := op.Width(); n != 0 {
		return i.executeSized(opPC, op, n, operand)
	}
	switch op {
	case OpNop:
		return nil
	case OpLoadSp:
		return i.pushN(8, uint64(i.stack.pointer()))
	case OpLoadSb:
		return i.pushN(8, uint64(i.stack.base()))
	case OpPushPC:
		return i.pushN(8, uint64(i.PC))
	case OpVtr:
		return i.vtr()
	case OpJmp:
		i.PC = int(getUint(operand, 8))
		return nil
	case OpCall:
		target := int(getUint(operand, 8))
		if err := i.pushN(8, uint64(i.PC)); err != nil {
			return err
		}
		i.PC = target
		return nil
	case OpRet:
		addr, err := i.popN(8)
		if err != nil {
			return err
		}
		i.PC = int(addr)
		return nil
	case OpInt:
		code := InterruptCode(operand[0])
		return i.dispatch(code, i.PC)
	case OpHalt:
		i.exitCode = int(operand[0])
		i.state = stateHalted
		return nil
	default:
		return trap(TrapUnknownOpcode, opPC, op.String())
	}
}

// executeSized performs the action for a size-polymorphic opcode at width
// n bytes.
func (i *Instance) executeSized(opPC int, op Opcode, n int, operand []byte) error {
	switch {
	case op >= OpLoadC1 && op <= OpLoadC8:
		return i.pushN(n, getUint(operand, n))
	case op >= OpDup1 && op <= OpDup8:
		return i.trapAt(i.stack.dup(n))
	case op >= OpPop1 && op <= OpPop8:
		_, err := i.popN(n)
		return err
	case op >= OpSwap1 && op <= OpSwap8:
		return i.trapAt(i.stack.swap(n))
	case op >= OpLoad1 && op <= OpLoad8:
		return i.loadReal(n)
	case op >= OpStore1 && op <= OpStore8:
		return i.storeReal(n)
	case op >= OpLoadStatic1 && op <= OpLoadStatic8:
		return i.loadStatic(n)
	case op >= OpAdd1 && op <= OpAdd8:
		return i.binOp(n, func(a, b uint64) uint64 { return a + b })
	case op >= OpSub1 && op <= OpSub8:
		return i.binOp(n, func(a, b uint64) uint64 { return a - b })
	case op >= OpMul1 && op <= OpMul8:
		return i.binOp(n, func(a, b uint64) uint64 { return a * b })
	case op >= OpDivS1 && op <= OpDivS8:
		return i.divOp(n, true, false)
	case op >= OpDivU1 && op <= OpDivU8:
		return i.divOp(n, false, false)
	case op >= OpModS1 && op <= OpModS8:
		return i.divOp(n, true, true)
	case op >= OpModU1 && op <= OpModU8:
		return i.divOp(n, false, true)
	case op >= OpAnd1 && op <= OpAnd8:
		return i.binOp(n, func(a, b uint64) uint64 { return a & b })
	case op >= OpOr1 && op <= OpOr8:
		return i.binOp(n, func(a, b uint64) uint64 { return a | b })
	case op >= OpXor1 && op <= OpXor8:
		return i.binOp(n, func(a, b uint64) uint64 { return a ^ b })
	case op >= OpNot1 && op <= OpNot8:
		v, err := i.popN(n)
		if err != nil {
			return err
		}
		return i.pushN(n, ^v&maskWidth(n))
	case op >= OpShl1 && op <= OpShl8:
		return i.shiftOp(n, false, false)
	case op >= OpShr1 && op <= OpShr8:
		return i.shiftOp(n, false, true)
	case op >= OpSar1 && op <= OpSar8:
		return i.shiftOp(n, true, true)
	case op >= OpJnzC1 && op <= OpJnzC8:
		cond, err := i.popN(n)
		if err != nil {
			return err
		}
		if cond != 0 {
			i.PC = int(getUint(operand, 8))
		}
		return nil
	default:
		return trap(TrapUnknownOpcode, opPC, op.String())
	}
}

// binOp pops two n-byte operands (rhs on top, then lhs) and pushes
// f(lhs, rhs) masked to width n. Used for add/sub/mul/and/or/xor: stack
// effect `a b — (a op b)` per SPEC_FULL §B.
func (i *Instance) binOp(n int, f func(a, b uint64) uint64) error {
	rhs, err := i.popN(n)
	if err != nil {
		return err
	}
	lhs, err := i.popN(n)
	if err != nil {
		return err
	}
	return i.pushN(n, f(lhs, rhs)&maskWidth(n))
}

// divOp implements the four div/mod variants. Traps with TrapDivideByZero
// on a zero divisor; otherwise results wrap at width n (§9's Open Question
// resolution in SPEC_FULL §B).
func (i *Instance) divOp(n int, signed, mod bool) error {
	rhs, err := i.popN(n)
	if err != nil {
		return err
	}
	lhs, err := i.popN(n)
	if err != nil {
		return err
	}
	if rhs == 0 {
		return trap(TrapDivideByZero, i.PC, "")
	}
	var result uint64
	if signed {
		a, b := signExtend(lhs, n), signExtend(rhs, n)
		if mod {
			result = uint64(a % b)
		} else {
			result = uint64(a / b)
		}
	} else {
		if mod {
			result = lhs % rhs
		} else {
			result = lhs / rhs
		}
	}
	return i.pushN(n, result&maskWidth(n))
}

// shiftOp implements shl/shr/sar: pops a shift count (top) then a value,
// pushes the shifted value masked to width n. Shift counts are reduced mod
// the width's bit count, matching typical two's-complement shift hardware.
func (i *Instance) shiftOp(n int, arithmetic, right bool) error {
	count, err := i.popN(n)
	if err != nil {
		return err
	}
	val, err := i.popN(n)
	if err != nil {
		return err
	}
	bits := uint(8 * n)
	shift := uint(count) % bits
	var result uint64
	switch {
	case !right:
		result = val << shift
	case right && arithmetic:
		result = uint64(signExtend(val, n) >> shift)
	default:
		result = val >> shift
	}
	return i.pushN(n, result&maskWidth(n))
}
