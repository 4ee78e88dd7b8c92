package program

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

var (
	// ErrUnknownProgram is returned when looking up a program that was not
	// added to the stack.
	ErrUnknownProgram = errors.New("unknown program")
	// ErrUnknownFunction is returned when looking up a function a program does
	// not declare.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrInvalidProgram is returned for malformed program definitions.
	ErrInvalidProgram = errors.New("invalid program")
)

// Operand is an argument of a nested call: either a register forwarding one
// of the caller's inputs, or a literal plaintext.
type Operand struct {
	// Register is the index of the forwarded input, or -1 for a literal.
	Register int
	Literal  Plaintext
}

// ParseOperand parses "rN" as a register and anything else as a plaintext.
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "r") {
		if n, err := strconv.Atoi(s[1:]); err == nil && n >= 0 {
			return Operand{Register: n}, nil
		}
	}
	p, err := ParsePlaintext(s)
	if err != nil {
		return Operand{}, err
	}
	return Operand{Register: -1, Literal: p}, nil
}

// Resolve returns the value the operand denotes given the caller's inputs.
func (o Operand) Resolve(inputs []Value) (Value, error) {
	if o.Register < 0 {
		return o.Literal, nil
	}
	if o.Register >= len(inputs) {
		return nil, fmt.Errorf("%w: register r%d with %d inputs", ErrInvalidProgram, o.Register, len(inputs))
	}
	return inputs[o.Register], nil
}

func (o Operand) String() string {
	if o.Register < 0 {
		return o.Literal.String()
	}
	return "r" + strconv.Itoa(o.Register)
}

// Call is a nested call made by a function body.
type Call struct {
	// Program is the callee program, zero for a function of the same program.
	Program  ProgramID
	Function Identifier
	Operands []Operand
}

// Target returns the program the call lands in when made from caller.
func (c Call) Target(caller ProgramID) ProgramID {
	if c.Program.IsZero() {
		return caller
	}
	return c.Program
}

// Arguments resolves every operand against the caller's inputs.
func (c Call) Arguments(inputs []Value) ([]Value, error) {
	args := make([]Value, len(c.Operands))
	for i, o := range c.Operands {
		v, err := o.Resolve(inputs)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// Function is a function declaration: its input types and the calls its body
// makes, in order.
type Function struct {
	Name   Identifier
	Inputs []ValueType
	Calls  []Call
}

// Program is a named set of functions.
type Program struct {
	ID        ProgramID
	Functions []*Function
}

// Function returns the named function.
func (p *Program) Function(name Identifier) (*Function, error) {
	for _, f := range p.Functions {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrUnknownFunction, p.ID, name)
}

// ProgramTOML is the on-disk description of a program.
type ProgramTOML struct {
	ID        string
	Functions []FunctionTOML
}

// FunctionTOML describes one function.
type FunctionTOML struct {
	Name   string
	Inputs []string
	Calls  []CallTOML
}

// CallTOML describes one nested call. Program is empty for local calls.
type CallTOML struct {
	Program  string
	Function string
	Operands []string
}

// TOML returns the TOML-compatible version of the program.
func (p *Program) TOML() interface{} {
	ptoml := &ProgramTOML{ID: p.ID.String()}
	for _, f := range p.Functions {
		ftoml := FunctionTOML{Name: string(f.Name)}
		for _, in := range f.Inputs {
			ftoml.Inputs = append(ftoml.Inputs, in.String())
		}
		for _, c := range f.Calls {
			ctoml := CallTOML{Function: string(c.Function)}
			if !c.Program.IsZero() {
				ctoml.Program = c.Program.String()
			}
			for _, o := range c.Operands {
				ctoml.Operands = append(ctoml.Operands, o.String())
			}
			ftoml.Calls = append(ftoml.Calls, ctoml)
		}
		ptoml.Functions = append(ptoml.Functions, ftoml)
	}
	return ptoml
}

// FromTOML decodes and validates a program definition.
func (p *Program) FromTOML(i interface{}) error {
	ptoml, ok := i.(*ProgramTOML)
	if !ok {
		return errors.New("program can't decode toml from non ProgramTOML struct")
	}
	id, err := ParseProgramID(ptoml.ID)
	if err != nil {
		return err
	}
	prog := &Program{ID: id}
	for _, ftoml := range ptoml.Functions {
		f, err := functionFromTOML(ftoml)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidProgram, id, err)
		}
		if _, err := prog.Function(f.Name); err == nil {
			return fmt.Errorf("%w: %s: duplicate function %s", ErrInvalidProgram, id, f.Name)
		}
		prog.Functions = append(prog.Functions, f)
	}
	*p = *prog
	return nil
}

// TOMLValue returns an empty TOML-compatible value of the program.
func (p *Program) TOMLValue() interface{} {
	return &ProgramTOML{}
}

func functionFromTOML(ftoml FunctionTOML) (*Function, error) {
	name, err := NewIdentifier(ftoml.Name)
	if err != nil {
		return nil, err
	}
	f := &Function{Name: name}
	for _, decl := range ftoml.Inputs {
		t, err := ParseValueType(decl)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", name, err)
		}
		f.Inputs = append(f.Inputs, t)
	}
	for _, ctoml := range ftoml.Calls {
		c := Call{}
		if ctoml.Program != "" {
			if c.Program, err = ParseProgramID(ctoml.Program); err != nil {
				return nil, err
			}
		}
		if c.Function, err = NewIdentifier(ctoml.Function); err != nil {
			return nil, err
		}
		for _, s := range ctoml.Operands {
			o, err := ParseOperand(s)
			if err != nil {
				return nil, fmt.Errorf("function %s: call %s: %w", name, c.Function, err)
			}
			if o.Register >= len(f.Inputs) {
				return nil, fmt.Errorf("function %s: call %s: register r%d out of range", name, c.Function, o.Register)
			}
			c.Operands = append(c.Operands, o)
		}
		f.Calls = append(f.Calls, c)
	}
	return f, nil
}

// Parse decodes a program from its TOML text.
func Parse(data string) (*Program, error) {
	p := new(Program)
	ptoml := p.TOMLValue()
	if _, err := toml.Decode(data, ptoml); err != nil {
		return nil, err
	}
	if err := p.FromTOML(ptoml); err != nil {
		return nil, err
	}
	return p, nil
}
