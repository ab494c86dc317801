package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// WireVersion is the version of the encoded class format.
const WireVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Wire structures
// ---------------------------------------------------------------------------

// Jump targets and local variable ranges are encoded as instruction
// positions; -1 means none.

type wireClass struct {
	Format    int          `cbor:"1,keyasint"`
	Version   int          `cbor:"2,keyasint"`
	Access    uint16       `cbor:"3,keyasint"`
	Name      string       `cbor:"4,keyasint"`
	SuperName string       `cbor:"5,keyasint"`
	Source    string       `cbor:"6,keyasint,omitempty"`
	Fields    []wireField  `cbor:"7,keyasint,omitempty"`
	Methods   []wireMethod `cbor:"8,keyasint,omitempty"`
}

type wireField struct {
	Access uint16 `cbor:"1,keyasint"`
	Name   string `cbor:"2,keyasint"`
	Desc   string `cbor:"3,keyasint"`
}

type wireMethod struct {
	Access           uint16           `cbor:"1,keyasint"`
	Name             string           `cbor:"2,keyasint"`
	Desc             string           `cbor:"3,keyasint"`
	MaxStack         int              `cbor:"4,keyasint"`
	MaxLocals        int              `cbor:"5,keyasint"`
	Insns            []wireInsn       `cbor:"6,keyasint,omitempty"`
	Locals           []wireLocal      `cbor:"7,keyasint,omitempty"`
	ParamAnnotations map[int][]string `cbor:"8,keyasint,omitempty"`
	Markers          []string         `cbor:"9,keyasint,omitempty"`
}

type wireInsn struct {
	Op        byte       `cbor:"1,keyasint"`
	Operand   int        `cbor:"2,keyasint,omitempty"`
	Increment int        `cbor:"3,keyasint,omitempty"`
	Owner     string     `cbor:"4,keyasint,omitempty"`
	Name      string     `cbor:"5,keyasint,omitempty"`
	Desc      string     `cbor:"6,keyasint,omitempty"`
	Interface bool       `cbor:"7,keyasint,omitempty"`
	Const     *wireConst `cbor:"8,keyasint,omitempty"`
	Target    int        `cbor:"9,keyasint,omitempty"`
}

// Constant kinds.
const (
	constString byte = iota + 1
	constInt
	constLong
	constFloat
	constDouble
	constType
)

type wireConst struct {
	Kind   byte    `cbor:"1,keyasint"`
	String string  `cbor:"2,keyasint,omitempty"`
	Int    int64   `cbor:"3,keyasint,omitempty"`
	Float  float64 `cbor:"4,keyasint,omitempty"`
}

type wireLocal struct {
	Name  string `cbor:"1,keyasint"`
	Desc  string `cbor:"2,keyasint"`
	Index int    `cbor:"3,keyasint"`
	Start int    `cbor:"4,keyasint"`
	End   int    `cbor:"5,keyasint"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// MarshalClass serializes a class to canonical CBOR bytes.
func MarshalClass(c *ClassNode) ([]byte, error) {
	w := wireClass{
		Format:    WireVersion,
		Version:   c.Version,
		Access:    uint16(c.Access),
		Name:      c.Name,
		SuperName: c.SuperName,
		Source:    c.Source,
	}
	for _, f := range c.Fields {
		w.Fields = append(w.Fields, wireField{uint16(f.Access), f.Name, f.Desc})
	}
	for _, m := range c.Methods {
		wm, err := encodeMethod(m)
		if err != nil {
			return nil, fmt.Errorf("bytecode: marshal %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
		}
		w.Methods = append(w.Methods, wm)
	}
	return cborEncMode.Marshal(&w)
}

func encodeMethod(m *MethodNode) (wireMethod, error) {
	wm := wireMethod{
		Access:           uint16(m.Access),
		Name:             m.Name,
		Desc:             m.Desc,
		MaxStack:         m.MaxStack,
		MaxLocals:        m.MaxLocals,
		ParamAnnotations: m.ParamAnnotations,
		Markers:          m.Markers,
	}
	insns := m.Instructions
	for insn := range insns.All() {
		wi := wireInsn{
			Op:        byte(insn.Op),
			Operand:   insn.Operand,
			Increment: insn.Increment,
			Owner:     insn.Owner,
			Name:      insn.Name,
			Desc:      insn.Desc,
			Interface: insn.Interface,
		}
		if insn.Kind() == KindJump {
			// Stored +1 so that position 0 survives omitempty.
			wi.Target = insns.IndexOf(insn.Target) + 1
		}
		if insn.Kind() == KindLdc {
			c, err := encodeConst(insn.Const)
			if err != nil {
				return wm, err
			}
			wi.Const = c
		}
		wm.Insns = append(wm.Insns, wi)
	}
	for _, lv := range m.LocalVariables {
		wm.Locals = append(wm.Locals, wireLocal{
			Name:  lv.Name,
			Desc:  lv.Desc,
			Index: lv.Index,
			Start: insns.IndexOf(lv.Start),
			End:   insns.IndexOf(lv.End),
		})
	}
	return wm, nil
}

func encodeConst(v any) (*wireConst, error) {
	switch c := v.(type) {
	case string:
		return &wireConst{Kind: constString, String: c}, nil
	case int32:
		return &wireConst{Kind: constInt, Int: int64(c)}, nil
	case int64:
		return &wireConst{Kind: constLong, Int: c}, nil
	case float32:
		return &wireConst{Kind: constFloat, Float: float64(c)}, nil
	case float64:
		return &wireConst{Kind: constDouble, Float: c}, nil
	case Type:
		return &wireConst{Kind: constType, String: c.Descriptor()}, nil
	}
	return nil, fmt.Errorf("unsupported constant %T", v)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// UnmarshalClass deserializes a class from CBOR bytes.
func UnmarshalClass(data []byte) (*ClassNode, error) {
	var w wireClass
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal class: %w", err)
	}
	if w.Format != WireVersion {
		return nil, fmt.Errorf("bytecode: unmarshal class: unsupported format %d", w.Format)
	}
	c := &ClassNode{}
	c.Visit(w.Version, Access(w.Access), w.Name, w.SuperName)
	c.VisitSource(w.Source)
	for _, f := range w.Fields {
		c.VisitField(Access(f.Access), f.Name, f.Desc)
	}
	for _, wm := range w.Methods {
		m, err := decodeMethod(wm)
		if err != nil {
			return nil, fmt.Errorf("bytecode: unmarshal %s.%s%s: %w", w.Name, wm.Name, wm.Desc, err)
		}
		c.AddMethod(m)
	}
	return c, nil
}

func decodeMethod(wm wireMethod) (*MethodNode, error) {
	m := NewMethod(Access(wm.Access), wm.Name, wm.Desc)
	m.MaxStack = wm.MaxStack
	m.MaxLocals = wm.MaxLocals
	m.ParamAnnotations = wm.ParamAnnotations
	m.Markers = wm.Markers

	insns := make([]*Insn, len(wm.Insns))
	for i, wi := range wm.Insns {
		insns[i] = &Insn{
			Op:        Opcode(wi.Op),
			Operand:   wi.Operand,
			Increment: wi.Increment,
			Owner:     wi.Owner,
			Name:      wi.Name,
			Desc:      wi.Desc,
			Interface: wi.Interface,
		}
		if wi.Const != nil {
			v, err := decodeConst(wi.Const)
			if err != nil {
				return nil, err
			}
			insns[i].Const = v
		}
	}
	at := func(pos int) (*Insn, error) {
		if pos < 0 {
			return nil, nil
		}
		if pos >= len(insns) {
			return nil, fmt.Errorf("instruction position %d out of range", pos)
		}
		return insns[pos], nil
	}
	for i, wi := range wm.Insns {
		if insns[i].Kind() != KindJump {
			continue
		}
		target, err := at(wi.Target - 1)
		if err != nil {
			return nil, err
		}
		insns[i].Target = target
	}
	for _, insn := range insns {
		m.Instructions.Add(insn)
	}
	for _, wl := range wm.Locals {
		start, err := at(wl.Start)
		if err != nil {
			return nil, err
		}
		end, err := at(wl.End)
		if err != nil {
			return nil, err
		}
		m.LocalVariables = append(m.LocalVariables, &LocalVariable{
			Name: wl.Name, Desc: wl.Desc, Index: wl.Index, Start: start, End: end,
		})
	}
	return m, nil
}

func decodeConst(c *wireConst) (any, error) {
	switch c.Kind {
	case constString:
		return c.String, nil
	case constInt:
		return int32(c.Int), nil
	case constLong:
		return c.Int, nil
	case constFloat:
		return float32(c.Float), nil
	case constDouble:
		return c.Float, nil
	case constType:
		return ParseType(c.String)
	}
	return nil, fmt.Errorf("unknown constant kind %d", c.Kind)
}
