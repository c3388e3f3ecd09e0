package kfile

// PageID identifies a fixed-size page in the database file.
type PageID int64

// InvalidPageID marks a frame that currently holds no page.
const InvalidPageID PageID = -1

// PageSize is the number of bytes in a page.
const PageSize = 4096
