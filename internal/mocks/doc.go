// Package mocks 提供 pkg/interfaces 协作者的测试替身
//
// 每个方法都可通过 XxxFunc 字段覆盖；未覆盖时使用线程安全的默认行为。
package mocks
