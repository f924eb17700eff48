// Package chat connects to Twitch chat as the bot account.
//
// The Client joins every configured channel, converts each PRIVMSG into a
// dispatch.Inbound and submits it to the dispatcher. It also implements
// dispatch.SourceSender so replies go out on the same connection.
//
// Credentials: TWITCH_BOT_USERNAME and an OAuth token with chat:read and
// chat:edit scopes in TWITCH_OAUTH_TOKEN (with or without the "oauth:" prefix).
package chat
