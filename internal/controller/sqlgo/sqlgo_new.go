// =================================================================================
// This is auto-generated by GoFrame CLI tool only once. Fill this file as you wish.
// =================================================================================

package sqlgo

import (
	"github.com/Malowking/sqlgo/api/sqlgo"
)

type ControllerV1 struct{}

func NewV1() sqlgo.ISqlgoV1 {
	return &ControllerV1{}
}
