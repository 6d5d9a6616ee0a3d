// Package lua runs user scripts in a sandboxed gopher-lua state.
//
// A State opens only the base, table, string and math libraries. File
// loading functions are removed, require resolves only built-in and
// preloaded modules, and print writes to a configurable writer.
//
// Execution is bounded two ways. A timeout is attached to the VM through
// its context, which gopher-lua checks between instructions. The
// instruction limit counts host calls: every function a module exposes
// charges the sandbox, and a script that exceeds its budget fails with
// ErrInstructionLimit.
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//	err = state.DoString(ctx, `print("hello")`)
package lua
