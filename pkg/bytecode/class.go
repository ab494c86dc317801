package bytecode

import "strings"

// Version is the class file version written by Visit.
const Version = 50

// ---------------------------------------------------------------------------
// ClassNode
// ---------------------------------------------------------------------------

// FieldNode is a field of a class.
type FieldNode struct {
	Access Access
	Name   string
	Desc   string
}

// ClassNode is a class: header plus fields and methods. The zero value is
// an empty shell to be filled in by a visitor.
type ClassNode struct {
	Version   int
	Access    Access
	Name      string
	SuperName string
	Source    string
	Fields    []*FieldNode
	Methods   []*MethodNode
}

// NewClass creates a public class extending superName.
func NewClass(name, superName string) *ClassNode {
	c := &ClassNode{}
	c.Visit(Version, AccPublic|AccSuper, name, superName)
	return c
}

// Visit sets the class header.
func (c *ClassNode) Visit(version int, access Access, name, superName string) {
	c.Version = version
	c.Access = access
	c.Name = name
	c.SuperName = superName
}

// VisitSource records the source file name.
func (c *ClassNode) VisitSource(source string) {
	c.Source = source
}

// VisitField adds a field.
func (c *ClassNode) VisitField(access Access, name, desc string) *FieldNode {
	f := &FieldNode{Access: access, Name: name, Desc: desc}
	c.Fields = append(c.Fields, f)
	return f
}

// VisitMethod adds an empty method and returns it for the caller to fill.
func (c *ClassNode) VisitMethod(access Access, name, desc string) *MethodNode {
	m := NewMethod(access, name, desc)
	c.Methods = append(c.Methods, m)
	return m
}

// AddMethod adds an existing method.
func (c *ClassNode) AddMethod(m *MethodNode) {
	c.Methods = append(c.Methods, m)
}

// Method returns the method with the given name and descriptor, or nil.
func (c *ClassNode) Method(name, desc string) *MethodNode {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// MethodsNamed returns all methods with the given name.
func (c *ClassNode) MethodsNamed(name string) []*MethodNode {
	var out []*MethodNode
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// MethodsNamedPrefix returns all methods whose name starts with prefix.
func (c *ClassNode) MethodsNamedPrefix(prefix string) []*MethodNode {
	var out []*MethodNode
	for _, m := range c.Methods {
		if strings.HasPrefix(m.Name, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Field returns the field with the given name, or nil.
func (c *ClassNode) Field(name string) *FieldNode {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// SimpleName returns the class name without its package.
func (c *ClassNode) SimpleName() string {
	return SimpleClassName(c.Name)
}

// IsEmpty reports whether the class is still an unvisited shell.
func (c *ClassNode) IsEmpty() bool {
	return c.Name == "" && len(c.Methods) == 0 && len(c.Fields) == 0
}

// SimpleClassName strips the package from an internal class name.
func SimpleClassName(internalName string) string {
	if i := strings.LastIndexByte(internalName, '/'); i >= 0 {
		return internalName[i+1:]
	}
	return internalName
}
