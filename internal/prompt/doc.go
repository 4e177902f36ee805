// Package prompt implements login.CredentialProvider on an interactive terminal.
//
// Prompts are colorized with fatih/color; the password is read without echo
// through golang.org/x/term when input is a terminal. The login key prompt
// asks for confirmation before it is used: "y" or "1" accepts, "n" or "2"
// asks again.
package prompt
