// Package common holds small enumerations shared by command line handling and
// configuration, so neither has to import the other.
package common

import (
	"fmt"
	"strings"
)

// OutputFmt is requested output serialization.
type OutputFmt int

const (
	OutputFmtJSON OutputFmt = iota
	OutputFmtYAML
)

var outputFmtNames = []string{"json", "yaml"}

func (o OutputFmt) String() string {
	if o < 0 || int(o) >= len(outputFmtNames) {
		return fmt.Sprintf("OutputFmt(%d)", int(o))
	}
	return outputFmtNames[o]
}

func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtJSON:
		return ".json"
	case OutputFmtYAML:
		return ".yaml"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

// MarshalText implements the text marshaller method.
func (o OutputFmt) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (o *OutputFmt) UnmarshalText(text []byte) error {
	v, err := ParseOutputFmt(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// OutputFmtNames returns list of possible output format names.
func OutputFmtNames() []string {
	return append([]string(nil), outputFmtNames...)
}

// ParseOutputFmt attempts to convert a string to OutputFmt.
func ParseOutputFmt(name string) (OutputFmt, error) {
	for i, n := range outputFmtNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return OutputFmt(i), nil
		}
	}
	return OutputFmtJSON, fmt.Errorf("%s is not a valid OutputFmt, try [%s]", name, strings.Join(outputFmtNames, ", "))
}

// Part of the composed schema to output.
type Section int

const (
	SectionAll Section = iota
	SectionVersion
	SectionCategories
	SectionDictionary
	SectionObjects
	SectionClasses
)

var sectionNames = []string{"all", "version", "categories", "dictionary", "objects", "classes"}

func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionNames) {
		return fmt.Sprintf("Section(%d)", int(s))
	}
	return sectionNames[s]
}

// SectionNames returns list of possible section names.
func SectionNames() []string {
	return append([]string(nil), sectionNames...)
}

// ParseSection attempts to convert a string to Section.
func ParseSection(name string) (Section, error) {
	for i, n := range sectionNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Section(i), nil
		}
	}
	return SectionAll, fmt.Errorf("%s is not a valid Section, try [%s]", name, strings.Join(sectionNames, ", "))
}
