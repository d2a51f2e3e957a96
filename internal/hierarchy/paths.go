package hierarchy

import (
	"path/filepath"
	"strings"
)

// DisplaySeparator joins full_path components.
const DisplaySeparator = " > "

// Materialize builds the display breadcrumb of a node from its scope names
// and the unit names of its ancestry, root first.
func Materialize(deptName string, subDeptName *string, ancestry ...string) string {
	parts := make([]string, 0, len(ancestry)+2)
	parts = append(parts, deptName)
	if subDeptName != nil && *subDeptName != "" {
		parts = append(parts, *subDeptName)
	}
	parts = append(parts, ancestry...)
	return strings.Join(parts, DisplaySeparator)
}

// Extend appends one unit name to an already materialized path.
func Extend(parentPath, unitName string) string {
	if parentPath == "" {
		return unitName
	}
	return parentPath + DisplaySeparator + unitName
}

var componentReplacer = strings.NewReplacer("/", "_", `\`, "_")

// pathComponents splits a full_path into components that are each a single
// directory name. Department names are free text and may hold separators.
func pathComponents(fullPath string) []string {
	parts := strings.Split(fullPath, DisplaySeparator)
	for i, part := range parts {
		part = componentReplacer.Replace(strings.TrimSpace(part))
		switch part {
		case "", ".", "..":
			part = "_"
		}
		parts[i] = part
	}
	return parts
}

// ToFsPath maps a full_path onto the local filesystem under basePath. The
// result never leaves basePath.
func ToFsPath(basePath, fullPath string) string {
	rel := filepath.Join(pathComponents(fullPath)...)
	if basePath == "" {
		return rel
	}
	return filepath.Join(basePath, rel)
}

// ToObjectKey maps a full_path onto an object-store prefix ending in "/".
func ToObjectKey(fullPath string) string {
	return strings.Join(pathComponents(fullPath), "/") + "/"
}
