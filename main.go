package main

import (
	"fmt"
	stdlog "log"
	"path/filepath"

	"minidb/buffer"
	"minidb/kfile"
	"minidb/log"
)

func main() {
	dbDir := filepath.Join(".", "mydb")

	// Initialize DiskMgr
	dm, err := kfile.NewDiskMgr(dbDir)
	if err != nil {
		stdlog.Fatalf("Failed to initialize DiskMgr: %v", err)
	}
	defer func() {
		if err := dm.Close(); err != nil {
			stdlog.Printf("Failed to close DiskMgr: %v", err)
		}
	}()

	lm, err := log.NewLogMgr(dm)
	if err != nil {
		stdlog.Fatalf("Failed to initialize LogMgr: %v", err)
	}

	poolSize := 16
	replacer := buffer.NewLRUKReplacer(poolSize, 2)
	bm := buffer.NewBufferMgr(poolSize, dm, lm, replacer)

	// Create a page and write data through a pin
	frame, err := bm.NewPage()
	if err != nil {
		stdlog.Fatalf("Failed to create page: %v", err)
	}
	pid := frame.PageID()

	lsn, err := lm.Append([]byte(fmt.Sprintf("update page %d", pid)))
	if err != nil {
		stdlog.Fatalf("Failed to append log record: %v", err)
	}

	page := frame.Contents()
	if err := page.SetInt(0, 42); err != nil {
		stdlog.Fatalf("Failed to set int: %v", err)
	}
	if err := page.SetString(4, "Hello, Go!"); err != nil {
		stdlog.Fatalf("Failed to set string: %v", err)
	}
	frame.MarkModified(lsn)

	if !bm.UnpinPage(pid, true) {
		stdlog.Fatalf("Failed to unpin page %d", pid)
	}
	if err := bm.FlushPage(pid); err != nil {
		stdlog.Fatalf("Failed to flush page %d: %v", pid, err)
	}

	// Read it back
	frame, err = bm.FetchPage(pid)
	if err != nil {
		stdlog.Fatalf("Failed to fetch page %d: %v", pid, err)
	}
	intVal, err := frame.Contents().GetInt(0)
	if err != nil {
		stdlog.Fatalf("Failed to get int: %v", err)
	}
	strVal, err := frame.Contents().GetString(4)
	if err != nil {
		stdlog.Fatalf("Failed to get string: %v", err)
	}
	bm.UnpinPage(pid, false)

	fmt.Printf("Page %d\n", pid)
	fmt.Printf("Integer Value: %d\n", intVal)
	fmt.Printf("String Value: %s\n", strVal)
	fmt.Printf("Blocks Read: %d\n", dm.BlocksRead())
	fmt.Printf("Blocks Written: %d\n", dm.BlocksWritten())
	fmt.Printf("Buffer Hits: %d, Misses: %d\n", bm.HitCount(), bm.MissCount())
}
