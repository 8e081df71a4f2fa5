package scraper

// clickFirstViewAgenda opens the first "View Agenda" link on the page
const clickFirstViewAgenda = `(() => {
  const link = Array.from(document.querySelectorAll('a'))
    .find((a) => a.textContent.trim() === 'View Agenda');
  if (link) link.click();
})()`
