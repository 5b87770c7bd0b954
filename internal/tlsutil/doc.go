// Package tlsutil 提供集中式 TLS 配置，
// 为 HTTP 服务端、Redis 连接与远程内核客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
