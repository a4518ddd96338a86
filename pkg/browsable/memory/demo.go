package memory

// Demo returns the sample tree served when no backend is configured.
func Demo() *Node {
	return Dir("",
		Dir("images",
			File("background1.png", "PNG image content for background1"),
			File("background2.jpg", "JPEG image content for background2"),
			File("wallpaper.png", "PNG image content for wallpaper"),
		),
		Dir("docs",
			Dir("drafts"),
			File("design.txt", "Browsing engine design notes.\n"),
		),
		File("readme.txt", "This is a README file.\nWelcome to DittoBrowse!\n"),
		File("notes.txt", "Some notes about this browser.\nIt's pretty cool!\n"),
	)
}
