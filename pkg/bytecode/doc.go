// Package bytecode models classes and methods of the weave stack VM as a
// mutable instruction tree that can be inspected and rewritten.
//
// The instruction set is a subset of the JVM's, numbered the same way so
// that typed load, store and return opcodes can be derived from a base
// opcode and a value type (see Type.Opcode).
//
// # Architecture Overview
//
//   - Type: value types and method descriptors in JVM descriptor syntax
//     ("I", "J", "Lweave/lang/String;", "(IJ)V").
//
//   - Opcodes: a single metadata table giving each opcode its name,
//     operand kind and stack effect in words.
//
//   - Insn / InsnList: a doubly linked instruction list. Labels are
//     instructions too, so jump targets and local variable ranges survive
//     insertion of new code.
//
//   - MethodNode / ClassNode: the members of a class, with local variable
//     tables, parameter annotations and invisible processing markers.
//
//   - LocalsAt: the live local-variable table at an instruction.
//
//   - Verify / ComputeMaxs: linear stack simulation over a method body.
//
//   - MarshalClass / UnmarshalClass: canonical CBOR encoding of a class.
//
// # Stack words
//
// Stack effects and local slots are counted in words. long and double
// values occupy two words; the second slot of a two-word local is never
// addressed directly.
package bytecode
