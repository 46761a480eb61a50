package utils

import (
	"fmt"
	"math/bits"
	"os"
	"runtime/debug"
	"strings"
)

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Fatal(v any) {
	fmt.Println("sold: "+"\033[0;1;31mfatal:\033[0m", fmt.Sprintf("%s", v))
	debug.PrintStack()
	os.Exit(1)
}

func Assert(condition bool) {
	if !condition {
		Fatal("Assert failed")
	}
}

func CountrZero(n uint64) int {
	return bits.TrailingZeros64(n)
}

func RemovePrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		s = strings.TrimPrefix(s, prefix)
		return s, true
	}
	return s, false
}
