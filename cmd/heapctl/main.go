// Command heapctl exercises and inspects the yatsc heap allocator.
package main

func main() {
	execute()
}
