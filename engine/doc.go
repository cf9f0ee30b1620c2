// Package engine wraps a modernc.org/sqlite connection with the small query
// surface the workbench needs: whole-result execution, streaming row
// iteration, table enumeration and script execution. It also registers the
// SQL scalar functions the workbench exposes to users.
package engine
