// Package secrets locks keyrings through [org.freedesktop.Secret] when the screen is locked, so
// unlocked secrets are not left available while the user is away.
// Programs that provide this API include Gnome Keyring, KDE Wallet, and keepassxc.
//
// [org.freedesktop.Secret]: https://specifications.freedesktop.org/secret-service-spec/latest/
package secrets
