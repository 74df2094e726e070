//go:build ignore

// This program generates a test baked mesh file for unit tests.
// Run with: go run generate.go
package main

import (
	"bytes"
	"encoding/binary"
	"os"
)

func main() {
	var buf bytes.Buffer

	// Header (32 bytes)
	magic := make([]byte, 16)
	copy(magic, "\x00\x00SPICYMESH")
	buf.Write(magic)
	variant := make([]byte, 16)
	copy(variant, "spicy")
	buf.Write(variant)

	// Textures: one RGBA texture
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	writeString(&buf, "triangle-tex/rgba1111.png")
	buf.WriteByte(4)

	// Materials: one material, every slot on texture 0, no alpha mask
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	writeString(&buf, "default")
	binary.Write(&buf, binary.LittleEndian, [3]float32{1, 1, 1}) // base color
	binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 0}) // emission
	binary.Write(&buf, binary.LittleEndian, float32(1))          // roughness
	binary.Write(&buf, binary.LittleEndian, float32(0))          // metalness
	binary.Write(&buf, binary.LittleEndian, [6]uint32{0, 0, 0, 0, 0, 0xFFFFFFFF})

	// Meshes: one triangle
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	writeString(&buf, "triangle")
	binary.Write(&buf, binary.LittleEndian, uint32(0))                                     // material
	binary.Write(&buf, binary.LittleEndian, uint32(3))                                     // vertices
	binary.Write(&buf, binary.LittleEndian, uint32(3))                                     // indices
	binary.Write(&buf, binary.LittleEndian, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})          // positions
	binary.Write(&buf, binary.LittleEndian, []float32{0, 0, 1, 0, 0, 1, 0, 0, 1})          // normals
	binary.Write(&buf, binary.LittleEndian, []float32{0, 0, 1, 0, 0, 1})                   // uvs
	binary.Write(&buf, binary.LittleEndian, []float32{1, 0, 0, 1, 1, 0, 0, 1, 1, 0, 0, 1}) // tangents
	binary.Write(&buf, binary.LittleEndian, []uint32{0, 1, 2})

	if err := os.WriteFile("triangle.bakedmesh", buf.Bytes(), 0644); err != nil {
		panic(err)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)+1))
	buf.WriteString(s)
	buf.WriteByte(0)
}
