package annotate

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/blamekit/internal/blame"
)

// ErrNoFormatFunction is returned when a hook script does not define a
// global format function.
var ErrNoFormatFunction = errors.New("annotate: script defines no format function")

// LuaFormatter delegates gutter rendering to a user script. The script
// must define a global function
//
//	function format(hunk) ... end
//
// receiving a table with the fields sha, short_sha, author, email and
// date, and returning the gutter string. Returning nil falls back to
// the built-in format.
type LuaFormatter struct {
	mu       sync.Mutex
	state    *lua.LState
	fallback LineFormatter
}

// NewLuaFormatter compiles the hook script and verifies it defines
// format.
func NewLuaFormatter(script string, fallback LineFormatter) (*LuaFormatter, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading format script: %w", err)
	}
	if _, ok := L.GetGlobal("format").(*lua.LFunction); !ok {
		L.Close()
		return nil, ErrNoFormatFunction
	}
	return &LuaFormatter{state: L, fallback: fallback}, nil
}

// FormatHunk calls the script's format function. The Lua state is not
// reentrant, so calls are serialized.
func (f *LuaFormatter) FormatHunk(h blame.RowHunk) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	L := f.state
	tbl := L.NewTable()
	L.SetField(tbl, "sha", lua.LString(h.Commit))
	L.SetField(tbl, "short_sha", lua.LString(h.Commit.Short()))
	L.SetField(tbl, "author", lua.LString(h.Author))
	L.SetField(tbl, "email", lua.LString(h.AuthorEmail))
	L.SetField(tbl, "date", lua.LString(h.Time.Format(dateLayout)))

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("format"),
		NRet:    1,
		Protect: true,
	}, tbl); err != nil {
		return "", fmt.Errorf("format script: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return f.fallback.FormatHunk(h)
	default:
		return "", fmt.Errorf("format script returned %s, want string", ret.Type())
	}
}

// Close releases the Lua state.
func (f *LuaFormatter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Close()
}
