// Package service orchestrates books, feeds and analytics.
//
// BookService is the only write entry point into a book: feeds, the gRPC
// API and the HTTP API all go through it, so metrics, trade publication and
// quote activity tracking see every mutation. Session owns one BookService
// per symbol plus the feeds attached to them.
package service
