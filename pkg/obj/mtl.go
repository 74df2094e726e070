package obj

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/meshbake/pkg/encoding"
)

// Parses material file line, dispatching to specific parsers
func (dec *decoder) parseMtlLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	if fields[0] == "newmtl" {
		return dec.parseNewmtl(fields[1:])
	}
	if dec.matCurrent == nil {
		dec.appendWarn(mtlType, fields[0]+" before newmtl")
		return nil
	}

	m := dec.matCurrent
	switch fields[0] {
	case "Kd":
		return dec.parseColor(fields[1:], &m.Diffuse, "Kd")
	case "Ke":
		return dec.parseColor(fields[1:], &m.Emission, "Ke")
	case "Pr":
		return dec.parseScalar(fields[1:], &m.Roughness, "Pr")
	case "Pm":
		return dec.parseScalar(fields[1:], &m.Metallic, "Pm")
	case "map_Kd":
		m.DiffuseTexname = dec.parseTexname(fields[1:])
	case "map_Ke":
		m.EmissiveTexname = dec.parseTexname(fields[1:])
	case "map_Pr":
		m.RoughnessTexname = dec.parseTexname(fields[1:])
	case "map_Pm":
		m.MetallicTexname = dec.parseTexname(fields[1:])
	case "norm", "map_Bump", "map_bump", "bump":
		m.NormalTexname = dec.parseTexname(fields[1:])
	case "map_d":
		m.AlphaTexname = dec.parseTexname(fields[1:])
	case "Ka", "Ks", "Ns", "Ni", "d", "Tr", "Tf", "illum", "map_Ka", "map_Ks", "map_Ns":
		// classic Phong terms, not used by the PBR bake
	default:
		dec.appendWarn(mtlType, "field not supported: "+fields[0])
	}
	return nil
}

// Parses new material definition
// newmtl <mat_name>
func (dec *decoder) parseNewmtl(fields []string) error {
	if len(fields) < 1 {
		return dec.formatError("newmtl with no fields")
	}
	name := encoding.NameToUTF8(strings.Join(fields, " "))
	id, ok := dec.matIndex[name]
	if !ok {
		id = dec.addMaterial(name)
	}
	dec.matCurrent = &dec.res.Materials[id]
	return nil
}

func (dec *decoder) parseColor(fields []string, dst *[3]float32, kind string) error {
	if len(fields) < 3 {
		return dec.formatError(fmt.Sprintf("'%s' with less than 3 fields", kind))
	}
	for i, f := range fields[:3] {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return dec.formatError(fmt.Sprintf("'%s' parse float error", kind))
		}
		dst[i] = float32(val)
	}
	return nil
}

func (dec *decoder) parseScalar(fields []string, dst *float32, kind string) error {
	if len(fields) < 1 {
		return dec.formatError(fmt.Sprintf("'%s' with no fields", kind))
	}
	val, err := strconv.ParseFloat(fields[0], 32)
	if err != nil {
		return dec.formatError(fmt.Sprintf("'%s' parse float error", kind))
	}
	*dst = float32(val)
	return nil
}

// texture map options and the number of arguments they take; -1 means
// "up to three numbers"
var mapOptions = map[string]int{
	"-blendu": 1, "-blendv": 1, "-bm": 1, "-boost": 1, "-cc": 1,
	"-clamp": 1, "-imfchan": 1, "-texres": 1, "-type": 1,
	"-mm": 2,
	"-o":  -1, "-s": -1, "-t": -1,
}

// parseTexname extracts the file name from a texture map statement:
// map_xx [-options] <filename>
func (dec *decoder) parseTexname(fields []string) string {
	i := 0
	for i < len(fields) {
		n, ok := mapOptions[fields[i]]
		if !ok {
			break
		}
		i++
		if n > 0 {
			i += n
			continue
		}
		for k := 0; k < 3 && i < len(fields); k++ {
			if _, err := strconv.ParseFloat(fields[i], 32); err != nil {
				break
			}
			i++
		}
	}
	if i >= len(fields) {
		dec.appendWarn(mtlType, "texture statement without file name")
		return ""
	}
	return encoding.NormalizeSlashes(strings.Join(fields[i:], " "))
}
