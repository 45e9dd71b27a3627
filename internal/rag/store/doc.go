// Package store 提供 RAG 知识库的关系型存储层。
//
// 文档、分块、语料版本和问答日志均通过 gorm 持久化，
// 支持 MySQL、PostgreSQL 和 SQLite。
package store
