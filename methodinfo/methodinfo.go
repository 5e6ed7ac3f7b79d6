// Package methodinfo describes every portal method the broker knows about.
package methodinfo

import (
	"sort"
	"strings"
)

// MethodInfo is the static description of one portal method.
type MethodInfo struct {
	Interface string
	Method    string
	// UsesRequest is true when the method returns a Request handle and
	// completes asynchronously through Request.Response.
	UsesRequest bool
	// OptionArgIndex is the position of the a{sv} options argument, or -1.
	OptionArgIndex int
	InSignature    string
	OutSignature   string
}

// Find returns the entry for iface and method.
func Find(iface, method string) (MethodInfo, bool) {
	i := sort.Search(len(table), func(i int) bool {
		return compare(table[i], iface, method) >= 0
	})
	if i < len(table) && table[i].Interface == iface && table[i].Method == method {
		return table[i], true
	}
	return MethodInfo{}, false
}

// All returns a copy of the table.
func All() []MethodInfo {
	return append([]MethodInfo(nil), table...)
}

// Count returns the number of entries in the table.
func Count() int {
	return len(table)
}

// ForInterface returns the entries belonging to iface, in method order.
func ForInterface(iface string) []MethodInfo {
	start := sort.Search(len(table), func(i int) bool {
		return table[i].Interface >= iface
	})
	var out []MethodInfo
	for i := start; i < len(table) && table[i].Interface == iface; i++ {
		out = append(out, table[i])
	}
	return out
}

func compare(m MethodInfo, iface, method string) int {
	if c := strings.Compare(m.Interface, iface); c != 0 {
		return c
	}
	return strings.Compare(m.Method, method)
}
